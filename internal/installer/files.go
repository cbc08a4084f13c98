package installer

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bguidolim/mcs/internal/compose"
	"github.com/bguidolim/mcs/internal/platform"
	"github.com/spf13/afero"
)

// RenderSource reads src from a pack root and returns its files keyed by
// destination path (slash separated, relative to the scope's file root).
// A directory source yields one entry per file beneath it. Text files have
// __KEY__ placeholders substituted from values.
func RenderSource(root fs.FS, src, dest string, values map[string]string) (map[string][]byte, error) {
	info, err := fs.Stat(root, src)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", src, err)
	}

	out := make(map[string][]byte)
	if !info.IsDir() {
		data, err := fs.ReadFile(root, src)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", src, err)
		}
		out[path.Clean(dest)] = render(data, values)
		return out, nil
	}

	err = fs.WalkDir(root, src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel := p
		if src != "." {
			rel = strings.TrimPrefix(p, src+"/")
		}
		data, err := fs.ReadFile(root, p)
		if err != nil {
			return err
		}
		out[path.Join(dest, rel)] = render(data, values)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", src, err)
	}
	return out, nil
}

func render(data []byte, values map[string]string) []byte {
	if !utf8.Valid(data) || !bytes.Contains(data, []byte("__")) {
		return data
	}
	return []byte(compose.Substitute(string(data), values))
}

// FileCurrent reports whether the file at dest already holds data.
func FileCurrent(fsys afero.Fs, dest string, data []byte) bool {
	existing, err := afero.ReadFile(fsys, dest)
	if err != nil {
		return false
	}
	return bytes.Equal(existing, data)
}

// WriteFile installs data at dest atomically, marking it executable when
// asked.
func WriteFile(fsys afero.Fs, dest string, data []byte, executable bool) error {
	perm := os.FileMode(0644)
	if executable {
		perm = 0755
	}
	if err := platform.WriteFileAtomic(fsys, dest, data, perm); err != nil {
		return fmt.Errorf("installing %s: %w", dest, err)
	}
	return nil
}

// RemoveFile deletes dest and any parent directories it leaves empty, up
// to but excluding stopAt. A missing file is not an error.
func RemoveFile(fsys afero.Fs, dest, stopAt string) error {
	if err := fsys.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", dest, err)
	}
	stop := filepath.Clean(stopAt)
	for dir := filepath.Dir(dest); dir != stop && len(dir) > len(stop); dir = filepath.Dir(dir) {
		entries, err := afero.ReadDir(fsys, dir)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := fsys.Remove(dir); err != nil {
			break
		}
	}
	return nil
}
