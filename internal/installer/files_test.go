package installer

import (
	"testing"
	"testing/fstest"

	"github.com/spf13/afero"
)

func TestRenderSource_File(t *testing.T) {
	root := fstest.MapFS{
		"hooks/start.sh": {Data: []byte("echo __REPO_NAME__\n")},
	}
	files, err := RenderSource(root, "hooks/start.sh", "hooks/session_start.sh", map[string]string{"REPO_NAME": "app"})
	if err != nil {
		t.Fatalf("RenderSource() error: %v", err)
	}
	got, ok := files["hooks/session_start.sh"]
	if !ok {
		t.Fatalf("missing destination, got %v", files)
	}
	if string(got) != "echo app\n" {
		t.Errorf("content = %q", got)
	}
}

func TestRenderSource_Directory(t *testing.T) {
	root := fstest.MapFS{
		"skills/review/SKILL.md":   {Data: []byte("# Review")},
		"skills/review/ref/a.md":   {Data: []byte("a")},
		"skills/other/ignored.txt": {Data: []byte("x")},
	}
	files, err := RenderSource(root, "skills/review", "skills/review", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2: %v", len(files), files)
	}
	for _, want := range []string{"skills/review/SKILL.md", "skills/review/ref/a.md"} {
		if _, ok := files[want]; !ok {
			t.Errorf("missing %s", want)
		}
	}
}

func TestRenderSource_BinaryUntouched(t *testing.T) {
	bin := []byte{0xff, 0xfe, '_', '_', 'X', '_', '_'}
	root := fstest.MapFS{"bin/tool": {Data: bin}}
	files, err := RenderSource(root, "bin/tool", "bin/tool", map[string]string{"X": "y"})
	if err != nil {
		t.Fatal(err)
	}
	if string(files["bin/tool"]) != string(bin) {
		t.Errorf("binary content was rewritten: %v", files["bin/tool"])
	}
}

func TestRenderSource_Missing(t *testing.T) {
	if _, err := RenderSource(fstest.MapFS{}, "nope.sh", "nope.sh", nil); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestWriteFileAndCurrent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	dest := "/p/.claude/hooks/start.sh"

	if FileCurrent(fsys, dest, []byte("x")) {
		t.Error("missing file reported current")
	}
	if err := WriteFile(fsys, dest, []byte("x"), true); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if !FileCurrent(fsys, dest, []byte("x")) {
		t.Error("written file not current")
	}
	if FileCurrent(fsys, dest, []byte("y")) {
		t.Error("changed content reported current")
	}
}

func TestRemoveFile_PrunesEmptyParents(t *testing.T) {
	fsys := afero.NewMemMapFs()
	root := "/p/.claude"
	_ = WriteFile(fsys, root+"/skills/review/SKILL.md", []byte("x"), false)
	_ = WriteFile(fsys, root+"/hooks/keep.sh", []byte("y"), false)

	if err := RemoveFile(fsys, root+"/skills/review/SKILL.md", root); err != nil {
		t.Fatalf("RemoveFile() error: %v", err)
	}
	if ok, _ := afero.DirExists(fsys, root+"/skills"); ok {
		t.Error("empty skills dir should be pruned")
	}
	if ok, _ := afero.DirExists(fsys, root); !ok {
		t.Error("stop directory must survive")
	}
	if ok, _ := afero.Exists(fsys, root+"/hooks/keep.sh"); !ok {
		t.Error("unrelated file removed")
	}
}

func TestRemoveFile_Missing(t *testing.T) {
	if err := RemoveFile(afero.NewMemMapFs(), "/p/.claude/none", "/p/.claude"); err != nil {
		t.Errorf("RemoveFile() on missing file = %v, want nil", err)
	}
}
