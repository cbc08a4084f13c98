package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/bguidolim/mcs/internal/manifest"
	"github.com/spf13/afero"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed all:pack
var packFS embed.FS

const (
	templateRoot = "pack"
	idToken      = "__ID__"
)

// Data holds the variables available to pack templates.
type Data struct {
	Identifier  string // e.g., "ios"
	DisplayName string // Derived: "Ios" from "ios", "Web App" from "web-app"
	Description string
	Version     string
	Year        int
}

// Result holds the outcome of a scaffold generation.
type Result struct {
	OutputDir string
	Files     []string
}

// NewData returns template data for a pack with derived fields populated.
func NewData(id, description string) *Data {
	name := cases.Title(language.English).String(strings.ReplaceAll(id, "-", " "))
	if description == "" {
		description = name + " conventions for Claude Code"
	}
	return &Data{
		Identifier:  id,
		DisplayName: name,
		Description: description,
		Version:     "0.1.0",
		Year:        time.Now().Year(),
	}
}

// Generate renders the pack templates into outputDir. The rendered manifest
// is validated before anything is written, and outputDir must be empty or
// missing.
func Generate(fsys afero.Fs, data *Data, outputDir string) (*Result, error) {
	rendered, err := render(data)
	if err != nil {
		return nil, err
	}
	if _, err := manifest.Parse(rendered[manifest.FileName], filepath.Join(outputDir, manifest.FileName)); err != nil {
		return nil, fmt.Errorf("generated manifest is invalid: %w", err)
	}

	existing, err := afero.ReadDir(fsys, outputDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading output directory: %w", err)
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("output directory %s is not empty; remove existing files first", outputDir)
	}

	result := &Result{OutputDir: outputDir}
	for rel, content := range rendered {
		out := filepath.Join(outputDir, filepath.FromSlash(rel))
		if err := fsys.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return nil, fmt.Errorf("creating directory for %s: %w", rel, err)
		}
		if err := afero.WriteFile(fsys, out, content, 0644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", out, err)
		}
		result.Files = append(result.Files, rel)
	}
	sort.Strings(result.Files)
	return result, nil
}

// render executes every embedded template, keyed by output path.
func render(data *Data) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := fs.WalkDir(packFS, templateRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		raw, err := fs.ReadFile(packFS, p)
		if err != nil {
			return fmt.Errorf("reading template %s: %w", p, err)
		}
		tmpl, err := template.New(path.Base(p)).Parse(string(raw))
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", p, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return fmt.Errorf("executing template %s: %w", p, err)
		}

		rel := strings.TrimPrefix(p, templateRoot+"/")
		rel = strings.TrimSuffix(rel, ".tmpl")
		rel = strings.ReplaceAll(rel, idToken, data.Identifier)
		out[rel] = buf.Bytes()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
