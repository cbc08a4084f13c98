package scaffold

import (
	"strings"
	"testing"

	"github.com/bguidolim/mcs/internal/manifest"
	"github.com/spf13/afero"
)

func TestNewData(t *testing.T) {
	t.Run("derives display name", func(t *testing.T) {
		d := NewData("web-app", "")
		if d.DisplayName != "Web App" {
			t.Errorf("DisplayName = %q, want %q", d.DisplayName, "Web App")
		}
		if d.Description != "Web App conventions for Claude Code" {
			t.Errorf("Description = %q", d.Description)
		}
		if d.Version != "0.1.0" {
			t.Errorf("Version = %q", d.Version)
		}
	})

	t.Run("keeps description", func(t *testing.T) {
		d := NewData("ios", "iOS: Xcode and simulators")
		if d.Description != "iOS: Xcode and simulators" {
			t.Errorf("Description = %q", d.Description)
		}
	})

	t.Run("year is populated", func(t *testing.T) {
		if NewData("x", "").Year == 0 {
			t.Error("Year should not be zero")
		}
	})
}

func TestGenerate(t *testing.T) {
	fsys := afero.NewMemMapFs()
	data := NewData("ios", "iOS: Xcode, simulators & more")

	result, err := Generate(fsys, data, "/work/ios-pack")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	want := []string{"README.md", "techpack.yaml", "templates/ios.md"}
	if strings.Join(result.Files, ",") != strings.Join(want, ",") {
		t.Errorf("Files = %v, want %v", result.Files, want)
	}

	raw, err := afero.ReadFile(fsys, "/work/ios-pack/techpack.yaml")
	if err != nil {
		t.Fatal(err)
	}
	tp, err := manifest.Parse(raw, "techpack.yaml")
	if err != nil {
		t.Fatalf("generated manifest does not parse: %v\n%s", err, raw)
	}
	if tp.Identifier != "ios" || tp.Description != "iOS: Xcode, simulators & more" {
		t.Errorf("unexpected manifest: %+v", tp)
	}

	section, err := afero.ReadFile(fsys, "/work/ios-pack/templates/ios.md")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(section), "__REPO_NAME__") {
		t.Errorf("placeholders should be left for sync to resolve:\n%s", section)
	}
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		setup func(fs afero.Fs)
	}{
		{
			name: "invalid identifier",
			id:   "Not Valid",
		},
		{
			name: "non-empty directory",
			id:   "ios",
			setup: func(fs afero.Fs) {
				_ = afero.WriteFile(fs, "/out/keep.txt", []byte("x"), 0644)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			if tt.setup != nil {
				tt.setup(fsys)
			}
			if _, err := Generate(fsys, NewData(tt.id, ""), "/out"); err == nil {
				t.Fatal("expected error")
			}
			if ok, _ := afero.Exists(fsys, "/out/techpack.yaml"); ok {
				t.Error("manifest written despite error")
			}
		})
	}
}
