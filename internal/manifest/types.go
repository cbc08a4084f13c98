package manifest

// FileName is the manifest file name at the root of every pack.
const FileName = "techpack.yaml"

// TechPack is the decoded form of a techpack.yaml manifest.
type TechPack struct {
	Identifier   string        `yaml:"identifier" json:"identifier"`
	DisplayName  string        `yaml:"displayName" json:"displayName"`
	Version      string        `yaml:"version" json:"version"`
	Description  string        `yaml:"description,omitempty" json:"description,omitempty"`
	Components   []Component   `yaml:"components,omitempty" json:"components,omitempty"`
	Templates    []Template    `yaml:"templates,omitempty" json:"templates,omitempty"`
	Placeholders []Placeholder `yaml:"placeholders,omitempty" json:"placeholders,omitempty"`
}

// Component is one installable unit of a pack. Exactly one of the
// type-specific payload fields is set, matching Type.
type Component struct {
	ID           string   `yaml:"id" json:"id"`
	DisplayName  string   `yaml:"displayName,omitempty" json:"displayName,omitempty"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty"`
	Type         string   `yaml:"type" json:"type"`
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Required     bool     `yaml:"required,omitempty" json:"required,omitempty"`

	Service       *Service               `yaml:"service,omitempty" json:"service,omitempty"`
	Plugin        string                 `yaml:"plugin,omitempty" json:"plugin,omitempty"`
	Package       string                 `yaml:"package,omitempty" json:"package,omitempty"`
	File          *FileCopy              `yaml:"file,omitempty" json:"file,omitempty"`
	Settings      map[string]interface{} `yaml:"settings,omitempty" json:"settings,omitempty"`
	IgnoreEntries []string               `yaml:"ignoreEntries,omitempty" json:"ignoreEntries,omitempty"`
	Shell         *ShellAction           `yaml:"shell,omitempty" json:"shell,omitempty"`
}

// Label returns the display name, falling back to the id.
func (c Component) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.ID
}

// Service describes a remote service (MCP server) registration.
type Service struct {
	Name    string            `yaml:"name" json:"name"`
	Command string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	URL     string            `yaml:"url,omitempty" json:"url,omitempty"`
}

// FileCopy copies a file or directory from the pack into the scope's host
// tool directory. A non-empty HookEvent also registers the copied script
// as a hook command for that event.
type FileCopy struct {
	Source      string `yaml:"source" json:"source"`
	Destination string `yaml:"destination" json:"destination"`
	Executable  bool   `yaml:"executable,omitempty" json:"executable,omitempty"`
	HookEvent   string `yaml:"hookEvent,omitempty" json:"hookEvent,omitempty"`
	Matcher     string `yaml:"matcher,omitempty" json:"matcher,omitempty"`
}

// ShellAction runs a command once on install and, optionally, an undo
// command on removal.
type ShellAction struct {
	Run  string `yaml:"run" json:"run"`
	Undo string `yaml:"undo,omitempty" json:"undo,omitempty"`
}

// Template is a pack's contribution to the managed instructions document.
type Template struct {
	SectionIdentifier string `yaml:"sectionIdentifier" json:"sectionIdentifier"`
	Content           string `yaml:"content,omitempty" json:"content,omitempty"`
	ContentFile       string `yaml:"contentFile,omitempty" json:"contentFile,omitempty"`
}

// Placeholder declares a __KEY__ value templates and copied files may use.
type Placeholder struct {
	Key         string `yaml:"key" json:"key"`
	Default     string `yaml:"default,omitempty" json:"default,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Component type discriminator values.
const (
	TypeRemoteService    = "remote-service"
	TypePlugin           = "plugin"
	TypePackage          = "package"
	TypeFileCopy         = "file-copy"
	TypeSettingsFragment = "settings-fragment"
	TypeIgnoreEntries    = "ignore-entries"
	TypeShellAction      = "shell-action"
)

// ValidTypes contains all valid component type values.
var ValidTypes = []string{
	TypeRemoteService,
	TypePlugin,
	TypePackage,
	TypeFileCopy,
	TypeSettingsFragment,
	TypeIgnoreEntries,
	TypeShellAction,
}
