package manifest

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.yaml.in/yaml/v3"
)

// InvalidError reports a manifest that failed schema or semantic checks.
type InvalidError struct {
	Source string
	Issues []ValidationIssue
}

func (e *InvalidError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return fmt.Sprintf("invalid manifest %s: %s", e.Source, strings.Join(parts, "; "))
}

// Parse validates and decodes manifest bytes. source names the manifest
// in error messages.
func Parse(data []byte, source string) (*TechPack, error) {
	result, err := Validate(data)
	if err != nil {
		return nil, fmt.Errorf("validating manifest %s: %w", source, err)
	}
	if !result.Valid {
		return nil, &InvalidError{Source: source, Issues: result.Issues}
	}

	var tp TechPack
	if err := yaml.Unmarshal(data, &tp); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", source, err)
	}

	if issues := check(&tp); len(issues) > 0 {
		return nil, &InvalidError{Source: source, Issues: issues}
	}
	return &tp, nil
}

// ParseFS reads FileName from the root of fsys and parses it.
func ParseFS(fsys fs.FS, source string) (*TechPack, error) {
	data, err := fs.ReadFile(fsys, FileName)
	if err != nil {
		return nil, fmt.Errorf("reading %s in %s: %w", FileName, source, err)
	}
	return Parse(data, source)
}

// check performs the cross-field checks a JSON schema cannot express.
func check(tp *TechPack) []ValidationIssue {
	var issues []ValidationIssue
	add := func(p, format string, args ...interface{}) {
		issues = append(issues, ValidationIssue{Path: p, Message: fmt.Sprintf(format, args...)})
	}

	if _, err := semver.NewVersion(tp.Version); err != nil {
		add("/version", "%q is not a semantic version", tp.Version)
	}

	ids := make(map[string]bool, len(tp.Components))
	for i, c := range tp.Components {
		p := fmt.Sprintf("/components/%d", i)
		if ids[c.ID] {
			add(p+"/id", "duplicate component id %q", c.ID)
		}
		ids[c.ID] = true
		for _, dep := range c.Dependencies {
			if dep == c.ID {
				add(p+"/dependencies", "component %q depends on itself", c.ID)
			}
		}
		if c.File != nil {
			if !isLocalPath(c.File.Source) {
				add(p+"/file/source", "%q escapes the pack directory", c.File.Source)
			}
			if !isLocalPath(c.File.Destination) {
				add(p+"/file/destination", "%q escapes the target directory", c.File.Destination)
			}
		}
	}

	sections := make(map[string]bool, len(tp.Templates))
	for i, t := range tp.Templates {
		if sections[t.SectionIdentifier] {
			add(fmt.Sprintf("/templates/%d/sectionIdentifier", i), "duplicate section %q", t.SectionIdentifier)
		}
		sections[t.SectionIdentifier] = true
		if t.ContentFile != "" && !isLocalPath(t.ContentFile) {
			add(fmt.Sprintf("/templates/%d/contentFile", i), "%q escapes the pack directory", t.ContentFile)
		}
	}

	keys := make(map[string]bool, len(tp.Placeholders))
	for i, ph := range tp.Placeholders {
		if keys[ph.Key] {
			add(fmt.Sprintf("/placeholders/%d/key", i), "duplicate placeholder %q", ph.Key)
		}
		keys[ph.Key] = true
	}
	return issues
}

func isLocalPath(p string) bool {
	return filepath.IsLocal(filepath.FromSlash(p)) && !strings.HasPrefix(path.Clean(p), "../")
}
