package installer

import (
	"fmt"
	"os"
	"strings"

	"github.com/bguidolim/mcs/internal/platform"
	"github.com/spf13/afero"
)

func readLines(fsys afero.Fs, path string) (string, error) {
	content, err := afero.ReadFile(fsys, path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(content), nil
}

// HasIgnoreEntry reports whether the ignore file at path lists entry.
func HasIgnoreEntry(fsys afero.Fs, path, entry string) (bool, error) {
	content, err := readLines(fsys, path)
	if err != nil {
		return false, err
	}
	for _, l := range strings.Split(content, "\n") {
		if strings.TrimSpace(l) == entry {
			return true, nil
		}
	}
	return false, nil
}

// AddIgnoreEntry appends entry to the ignore file at path, creating it if
// needed. If the line already exists, this is a no-op.
func AddIgnoreEntry(fsys afero.Fs, path, entry string) error {
	content, err := readLines(fsys, path)
	if err != nil {
		return err
	}
	for _, l := range strings.Split(content, "\n") {
		if strings.TrimSpace(l) == entry {
			return nil
		}
	}

	// Ensure there's a newline before our addition.
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += entry + "\n"

	if err := platform.WriteFileAtomic(fsys, path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// RemoveIgnoreEntry removes every line equal to entry from the ignore file
// at path. If the line is not present, this is a no-op.
func RemoveIgnoreEntry(fsys afero.Fs, path, entry string) error {
	content, err := readLines(fsys, path)
	if err != nil || content == "" {
		return err
	}

	lines := strings.Split(content, "\n")
	result := make([]string, 0, len(lines))
	found := false
	for _, l := range lines {
		if strings.TrimSpace(l) == entry {
			found = true
			continue
		}
		result = append(result, l)
	}
	if !found {
		return nil
	}

	if err := platform.WriteFileAtomic(fsys, path, []byte(strings.Join(result, "\n")), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
