package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/bguidolim/mcs/internal/platform"
	"github.com/spf13/afero"
)

// Reserved top-level keys with typed representations.
const (
	hooksKey   = "hooks"
	pluginsKey = "enabledPlugins"
)

// HookEntry is one hook. Only command hooks are created here; fields other
// than type and command (timeout, prompt, ...) are kept verbatim in Extra.
type HookEntry struct {
	Type    string
	Command string
	Extra   map[string]json.RawMessage
}

// HookGroup is a matcher with its hooks. Unknown fields are kept in Extra.
type HookGroup struct {
	Matcher string
	Hooks   []HookEntry
	Extra   map[string]json.RawMessage
}

func (h *HookEntry) UnmarshalJSON(data []byte) error {
	extra, err := splitObject(data, map[string]interface{}{"type": &h.Type, "command": &h.Command})
	if err != nil {
		return err
	}
	h.Extra = extra
	return nil
}

func (h HookEntry) MarshalJSON() ([]byte, error) {
	return joinObject(h.Extra, map[string]interface{}{"type": h.Type, "command": h.Command})
}

func (g *HookGroup) UnmarshalJSON(data []byte) error {
	extra, err := splitObject(data, map[string]interface{}{"matcher": &g.Matcher, "hooks": &g.Hooks})
	if err != nil {
		return err
	}
	g.Extra = extra
	return nil
}

func (g HookGroup) MarshalJSON() ([]byte, error) {
	hooks := g.Hooks
	if hooks == nil {
		hooks = []HookEntry{}
	}
	return joinObject(g.Extra, map[string]interface{}{"matcher": g.Matcher, "hooks": hooks})
}

// splitObject decodes the typed fields of a JSON object into their
// destinations and returns the remaining fields untouched.
func splitObject(data []byte, typed map[string]interface{}) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for key, dst := range typed {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		delete(raw, key)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return raw, nil
}

// joinObject encodes extra plus the typed fields. Empty strings are omitted.
func joinObject(extra map[string]json.RawMessage, typed map[string]interface{}) ([]byte, error) {
	out := make(map[string]interface{}, len(extra)+len(typed))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range typed {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}

// Document is the host tool's settings file.
type Document struct {
	Hooks          map[string][]HookGroup
	EnabledPlugins map[string]bool
	// Extra holds every other top-level key as decoded JSON
	// (maps, slices, json.Number, strings, bools, nil).
	Extra map[string]interface{}
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		Hooks:          make(map[string][]HookGroup),
		EnabledPlugins: make(map[string]bool),
		Extra:          make(map[string]interface{}),
	}
}

// UnmarshalJSON splits the typed keys from the open bag.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	*d = *NewDocument()
	for k, v := range raw {
		switch k {
		case hooksKey:
			if err := remarshal(v, &d.Hooks); err != nil {
				return fmt.Errorf("decoding %s: %w", hooksKey, err)
			}
		case pluginsKey:
			if err := remarshal(v, &d.EnabledPlugins); err != nil {
				return fmt.Errorf("decoding %s: %w", pluginsKey, err)
			}
		default:
			d.Extra[k] = v
		}
	}
	if d.Hooks == nil {
		d.Hooks = make(map[string][]HookGroup)
	}
	if d.EnabledPlugins == nil {
		d.EnabledPlugins = make(map[string]bool)
	}
	return nil
}

// MarshalJSON joins typed keys and the open bag. Empty typed fields are omitted.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(d.Extra)+2)
	for k, v := range d.Extra {
		out[k] = v
	}
	if len(d.Hooks) > 0 {
		out[hooksKey] = d.Hooks
	}
	if len(d.EnabledPlugins) > 0 {
		out[pluginsKey] = d.EnabledPlugins
	}
	return json.Marshal(out)
}

func remarshal(v interface{}, dst interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// LoadDocument reads the settings file at path. A missing or empty file
// yields an empty document.
func LoadDocument(fsys afero.Fs, path string) (*Document, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDocument(), nil
		}
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewDocument(), nil
	}
	d := NewDocument()
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	return d, nil
}

// SaveDocument writes the document atomically as indented JSON.
func SaveDocument(fsys afero.Fs, path string, d *Document) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("formatting settings: %w", err)
	}
	buf.WriteByte('\n')
	if err := platform.WriteFileAtomic(fsys, path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing settings %s: %w", path, err)
	}
	return nil
}

// HasHook reports whether command is registered under any event.
func (d *Document) HasHook(command string) bool {
	for _, groups := range d.Hooks {
		for _, g := range groups {
			for _, h := range g.Hooks {
				if h.Command != "" && h.Command == command {
					return true
				}
			}
		}
	}
	return false
}

// AddHook registers command for event. Commands are deduplicated by
// identity: registering one that already exists is a no-op returning false.
func (d *Document) AddHook(event, matcher, command string) bool {
	if d.HasHook(command) {
		return false
	}
	groups := d.Hooks[event]
	for i := range groups {
		if groups[i].Matcher == matcher {
			groups[i].Hooks = append(groups[i].Hooks, HookEntry{Type: "command", Command: command})
			d.Hooks[event] = groups
			return true
		}
	}
	d.Hooks[event] = append(groups, HookGroup{
		Matcher: matcher,
		Hooks:   []HookEntry{{Type: "command", Command: command}},
	})
	return true
}

// RemoveHook unregisters command everywhere, dropping emptied groups and
// events. It returns false if the command was not registered.
func (d *Document) RemoveHook(command string) bool {
	removed := false
	for event, groups := range d.Hooks {
		var keptGroups []HookGroup
		for _, g := range groups {
			var kept []HookEntry
			for _, h := range g.Hooks {
				if h.Command != "" && h.Command == command {
					removed = true
					continue
				}
				kept = append(kept, h)
			}
			if len(kept) > 0 {
				g.Hooks = kept
				keptGroups = append(keptGroups, g)
			}
		}
		if len(keptGroups) == 0 {
			delete(d.Hooks, event)
		} else {
			d.Hooks[event] = keptGroups
		}
	}
	return removed
}
