package state

import "sort"

// ServerRef identifies a registered remote service.
type ServerRef struct {
	Name  string `json:"name"`
	Scope string `json:"scope"`
}

func (r ServerRef) key() string { return r.Scope + "/" + r.Name }

// ArtifactRecord lists everything one pack placed into one scope.
type ArtifactRecord struct {
	MCPServers       []ServerRef `json:"mcpServers"`
	Files            []string    `json:"files"`
	TemplateSections []string    `json:"templateSections"`
	HookCommands     []string    `json:"hookCommands"`
	SettingsKeys     []string    `json:"settingsKeys"`
	BrewPackages     []string    `json:"brewPackages"`
	Plugins          []string    `json:"plugins"`
	GitignoreEntries []string    `json:"gitignoreEntries"`
	ShellActions     []string    `json:"shellActions,omitempty"`
}

// Kind names one artifact category of a record.
type Kind string

// Artifact kinds, in the order they are installed.
const (
	KindPackage Kind = "package"
	KindServer  Kind = "mcp-server"
	KindPlugin  Kind = "plugin"
	KindFile    Kind = "file"
	KindHook    Kind = "hook"
	KindSetting Kind = "setting"
	KindIgnore  Kind = "ignore-entry"
	KindSection Kind = "template-section"
	KindShell   Kind = "shell-action"
)

// Kinds lists every artifact kind in install order. Removal walks it in reverse.
var Kinds = []Kind{KindPackage, KindServer, KindPlugin, KindFile, KindHook, KindSetting, KindIgnore, KindSection, KindShell}

// Shared reports whether artifacts of kind k are machine-wide resources that
// several scopes may rely on at once.
func (k Kind) Shared() bool {
	return k == KindPackage || k == KindPlugin
}

// Items returns the record's artifacts of kind k as opaque strings.
// Server refs are encoded as "scope/name".
func (r *ArtifactRecord) Items(k Kind) []string {
	if r == nil {
		return nil
	}
	switch k {
	case KindServer:
		out := make([]string, len(r.MCPServers))
		for i, s := range r.MCPServers {
			out[i] = s.key()
		}
		return out
	case KindFile:
		return r.Files
	case KindSection:
		return r.TemplateSections
	case KindHook:
		return r.HookCommands
	case KindSetting:
		return r.SettingsKeys
	case KindPackage:
		return r.BrewPackages
	case KindPlugin:
		return r.Plugins
	case KindIgnore:
		return r.GitignoreEntries
	case KindShell:
		return r.ShellActions
	}
	return nil
}

// Has reports whether the record holds item of kind k.
func (r *ArtifactRecord) Has(k Kind, item string) bool {
	for _, v := range r.Items(k) {
		if v == item {
			return true
		}
	}
	return false
}

// Add records item under kind k. Adding an existing item is a no-op.
func (r *ArtifactRecord) Add(k Kind, item string) {
	if r.Has(k, item) {
		return
	}
	switch k {
	case KindServer:
		r.MCPServers = append(r.MCPServers, ParseServerRef(item))
	case KindFile:
		r.Files = append(r.Files, item)
	case KindSection:
		r.TemplateSections = append(r.TemplateSections, item)
	case KindHook:
		r.HookCommands = append(r.HookCommands, item)
	case KindSetting:
		r.SettingsKeys = append(r.SettingsKeys, item)
	case KindPackage:
		r.BrewPackages = append(r.BrewPackages, item)
	case KindPlugin:
		r.Plugins = append(r.Plugins, item)
	case KindIgnore:
		r.GitignoreEntries = append(r.GitignoreEntries, item)
	case KindShell:
		r.ShellActions = append(r.ShellActions, item)
	}
}

// Remove drops item from kind k.
func (r *ArtifactRecord) Remove(k Kind, item string) {
	switch k {
	case KindServer:
		out := make([]ServerRef, 0, len(r.MCPServers))
		for _, s := range r.MCPServers {
			if s.key() != item {
				out = append(out, s)
			}
		}
		r.MCPServers = out
	case KindFile:
		r.Files = without(r.Files, item)
	case KindSection:
		r.TemplateSections = without(r.TemplateSections, item)
	case KindHook:
		r.HookCommands = without(r.HookCommands, item)
	case KindSetting:
		r.SettingsKeys = without(r.SettingsKeys, item)
	case KindPackage:
		r.BrewPackages = without(r.BrewPackages, item)
	case KindPlugin:
		r.Plugins = without(r.Plugins, item)
	case KindIgnore:
		r.GitignoreEntries = without(r.GitignoreEntries, item)
	case KindShell:
		r.ShellActions = without(r.ShellActions, item)
	}
}

// IsEmpty reports whether the record holds no artifacts.
func (r *ArtifactRecord) IsEmpty() bool {
	for _, k := range Kinds {
		if len(r.Items(k)) > 0 {
			return false
		}
	}
	return true
}

// Count returns the total number of artifacts in the record.
func (r *ArtifactRecord) Count() int {
	n := 0
	for _, k := range Kinds {
		n += len(r.Items(k))
	}
	return n
}

// Clone returns a deep copy.
func (r *ArtifactRecord) Clone() *ArtifactRecord {
	out := &ArtifactRecord{}
	if r == nil {
		return out
	}
	for _, k := range Kinds {
		for _, item := range r.Items(k) {
			out.Add(k, item)
		}
	}
	return out
}

// Equal reports whether two records hold the same artifacts, ignoring order.
func (r *ArtifactRecord) Equal(other *ArtifactRecord) bool {
	for _, k := range Kinds {
		a, b := sorted(r.Items(k)), sorted(other.Items(k))
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	}
	return true
}

// Diff returns, for kind k, the items present in next but not in prev
// (added) and those present in prev but not in next (removed). Order
// follows the source record.
func Diff(prev, next *ArtifactRecord, k Kind) (added, removed []string) {
	for _, item := range next.Items(k) {
		if !prev.Has(k, item) {
			added = append(added, item)
		}
	}
	for _, item := range prev.Items(k) {
		if !next.Has(k, item) {
			removed = append(removed, item)
		}
	}
	return added, removed
}

// ParseServerRef decodes a "scope/name" server item.
func ParseServerRef(item string) ServerRef {
	for i := 0; i < len(item); i++ {
		if item[i] == '/' {
			return ServerRef{Scope: item[:i], Name: item[i+1:]}
		}
	}
	return ServerRef{Name: item}
}

// ServerItem encodes a server ref as a record item.
func ServerItem(name, scope string) string {
	return ServerRef{Name: name, Scope: scope}.key()
}

// fillNil replaces nil slices with empty ones so the JSON form always
// carries arrays.
func (r *ArtifactRecord) fillNil() {
	for _, p := range []*[]string{&r.Files, &r.TemplateSections, &r.HookCommands, &r.SettingsKeys,
		&r.BrewPackages, &r.Plugins, &r.GitignoreEntries} {
		if *p == nil {
			*p = []string{}
		}
	}
	if r.MCPServers == nil {
		r.MCPServers = []ServerRef{}
	}
}

func without(items []string, item string) []string {
	out := make([]string, 0, len(items))
	for _, v := range items {
		if v != item {
			out = append(out, v)
		}
	}
	return out
}

func sorted(items []string) []string {
	out := append([]string(nil), items...)
	sort.Strings(out)
	return out
}
