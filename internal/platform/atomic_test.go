package platform

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestWriteFileAtomic(t *testing.T) {
	fsys := afero.NewMemMapFs()
	path := "/scope/.claude/.mcs-project"

	if err := WriteFileAtomic(fsys, path, []byte("one"), 0644); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteFileAtomic(fsys, path, []byte("two"), 0644); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, err := afero.ReadFile(fsys, path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "two" {
		t.Errorf("content = %q, want %q", got, "two")
	}

	entries, err := afero.ReadDir(fsys, "/scope/.claude")
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp.") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestExists(t *testing.T) {
	fsys := afero.NewMemMapFs()
	ok, err := Exists(fsys, "/missing")
	if err != nil || ok {
		t.Fatalf("Exists(missing) = %v, %v", ok, err)
	}
	_ = afero.WriteFile(fsys, "/there", nil, 0644)
	ok, err = Exists(fsys, "/there")
	if err != nil || !ok {
		t.Fatalf("Exists(there) = %v, %v", ok, err)
	}
}
