package engine

import (
	"fmt"
	"path"
	"sort"

	"github.com/bguidolim/mcs/internal/compose"
	"github.com/bguidolim/mcs/internal/installer"
	"github.com/bguidolim/mcs/internal/integrations"
	"github.com/bguidolim/mcs/internal/manifest"
	"github.com/bguidolim/mcs/internal/registry"
	"github.com/bguidolim/mcs/internal/scope"
	"github.com/bguidolim/mcs/internal/settings"
	"github.com/bguidolim/mcs/internal/state"
)

// artifact is one desired artifact, in install order.
type artifact struct {
	kind      state.Kind
	item      string
	component string
}

type fileSpec struct {
	data       []byte
	executable bool
}

type hookSpec struct {
	event   string
	matcher string
}

// Desired is the declarative target of one pack in one scope: the record it
// should end with plus what is needed to install each artifact. Computing
// it has no side effects.
type Desired struct {
	Pack     *registry.Pack
	Record   *state.ArtifactRecord
	Warnings []string

	order    []artifact
	servers  map[string]integrations.ServerSpec
	files    map[string]fileSpec
	hooks    map[string]hookSpec
	settings map[string]interface{}
	sections map[string]compose.Contribution
	shells   map[string]manifest.ShellAction
}

func (d *Desired) add(k state.Kind, item, component string) {
	if d.Record.Has(k, item) {
		return
	}
	d.Record.Add(k, item)
	d.order = append(d.order, artifact{kind: k, item: item, component: component})
}

// SettingsKeys returns the key paths the pack declares.
func (d *Desired) SettingsKeys() []string {
	return d.Record.Items(state.KindSetting)
}

// Sections returns the pack's rendered contributions to the instructions
// document, sorted by section id.
func (d *Desired) Sections() []compose.Contribution {
	out := make([]compose.Contribution, 0, len(d.sections))
	for _, c := range d.sections {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// selection turns exclusions into the component ids to resolve. Required
// components cannot be excluded. A nil result selects everything.
func selection(p *registry.Pack, excluded []string) ([]string, []string) {
	if len(excluded) == 0 {
		return nil, nil
	}
	skip := make(map[string]bool, len(excluded))
	var warnings []string
	for _, id := range excluded {
		c, ok := p.Component(id)
		switch {
		case !ok:
			warnings = append(warnings, fmt.Sprintf("excluded component %q is not part of pack %s", id, p.ID))
		case c.Required:
			warnings = append(warnings, fmt.Sprintf("component %q of pack %s is required and stays installed", id, p.ID))
		default:
			skip[id] = true
		}
	}
	selected := make([]string, 0, len(p.Components))
	for _, c := range p.Components {
		if !skip[c.ID] {
			selected = append(selected, c.ID)
		}
	}
	closure := registry.Closure(p.Components, selected)
	for _, id := range excluded {
		if skip[id] && closure[id] {
			warnings = append(warnings, fmt.Sprintf("component %q of pack %s is needed by another selected component and stays installed", id, p.ID))
		}
	}
	return selected, warnings
}

// Desire computes the desired state of pack p in a scope. Dependency cycles,
// unknown dependencies and unreadable pack content are returned as errors
// and are fatal for this pack only.
func Desire(p *registry.Pack, excluded []string, values map[string]string, sc scope.Scope, layout scope.Layout) (*Desired, error) {
	d := &Desired{
		Pack:     p,
		Record:   &state.ArtifactRecord{},
		servers:  make(map[string]integrations.ServerSpec),
		files:    make(map[string]fileSpec),
		hooks:    make(map[string]hookSpec),
		settings: make(map[string]interface{}),
		sections: make(map[string]compose.Contribution),
		shells:   make(map[string]manifest.ShellAction),
	}

	selected, warnings := selection(p, excluded)
	d.Warnings = append(d.Warnings, warnings...)

	order, err := registry.ResolveOrder(p.Components, selected)
	if err != nil {
		return nil, registry.WithPack(err, p.ID)
	}

	for _, c := range order {
		if err := d.component(c, values, sc, layout); err != nil {
			return nil, &registry.InvalidConfigurationError{Pack: p.ID, Reason: "component " + c.ID, Err: err}
		}
	}

	for _, t := range p.Templates {
		text, err := p.TemplateContent(t)
		if err != nil {
			return nil, &registry.InvalidConfigurationError{Pack: p.ID, Err: err}
		}
		text = compose.Substitute(text, values)
		for _, ph := range compose.Unresolved(text) {
			d.Warnings = append(d.Warnings, fmt.Sprintf("section %s has no value for %s", t.SectionIdentifier, ph))
		}
		d.sections[t.SectionIdentifier] = compose.Contribution{
			ID:      t.SectionIdentifier,
			Version: p.Version,
			Content: text,
		}
		d.add(state.KindSection, t.SectionIdentifier, "")
	}
	return d, nil
}

func (d *Desired) component(c manifest.Component, values map[string]string, sc scope.Scope, layout scope.Layout) error {
	switch c.Type {
	case manifest.TypePackage:
		d.add(state.KindPackage, c.Package, c.ID)

	case manifest.TypeRemoteService:
		s := c.Service
		env := make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			env[k] = compose.Substitute(v, values)
		}
		item := state.ServerItem(s.Name, layout.ServerScope)
		d.servers[item] = integrations.ServerSpec{Name: s.Name, Command: s.Command, Args: s.Args, Env: env, URL: s.URL}
		d.add(state.KindServer, item, c.ID)

	case manifest.TypePlugin:
		d.add(state.KindPlugin, c.Plugin, c.ID)
		key := settings.PluginKey(c.Plugin)
		d.settings[key] = true
		d.add(state.KindSetting, key, c.ID)

	case manifest.TypeFileCopy:
		f := c.File
		files, err := renderFiles(d.Pack, f, values)
		if err != nil {
			return err
		}
		dests := make([]string, 0, len(files))
		for dest := range files {
			dests = append(dests, dest)
		}
		sort.Strings(dests)
		for _, dest := range dests {
			d.files[dest] = fileSpec{data: files[dest], executable: f.Executable}
			d.add(state.KindFile, dest, c.ID)
		}
		if f.HookEvent != "" {
			cmd := layout.HookCommand(sc, path.Clean(f.Destination))
			d.hooks[cmd] = hookSpec{event: f.HookEvent, matcher: f.Matcher}
			d.add(state.KindHook, cmd, c.ID)
		}

	case manifest.TypeSettingsFragment:
		for _, leaf := range settings.Flatten(c.Settings) {
			d.settings[leaf.Path] = leaf.Value
			d.add(state.KindSetting, leaf.Path, c.ID)
		}

	case manifest.TypeIgnoreEntries:
		for _, e := range c.IgnoreEntries {
			d.add(state.KindIgnore, e, c.ID)
		}

	case manifest.TypeShellAction:
		d.shells[c.ID] = *c.Shell
		d.add(state.KindShell, c.ID, c.ID)

	default:
		return fmt.Errorf("unknown component type %q", c.Type)
	}
	return nil
}

func renderFiles(p *registry.Pack, f *manifest.FileCopy, values map[string]string) (map[string][]byte, error) {
	if p.Root == nil {
		return nil, fmt.Errorf("pack %s has no content root for %s", p.ID, f.Source)
	}
	return installer.RenderSource(p.Root, f.Source, f.Destination, values)
}
