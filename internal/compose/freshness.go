package compose

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ContentHash hashes whitespace-trimmed text so formatting-only edits at
// the edges do not register as drift.
func ContentHash(s string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(s)))
	return hex.EncodeToString(sum[:])
}

// SameContent reports whether a and b are equal after trimming.
func SameContent(a, b string) bool {
	return ContentHash(a) == ContentHash(b)
}

// Outdated reports whether a section stamped with version is older than
// want. Unparseable versions compare as outdated when they differ.
func Outdated(version, want string) bool {
	have, err1 := semver.NewVersion(version)
	target, err2 := semver.NewVersion(want)
	if err1 != nil || err2 != nil {
		return strings.TrimPrefix(version, "v") != strings.TrimPrefix(want, "v")
	}
	return have.LessThan(target)
}

// NeedsUpdate reports whether section s differs from contribution c in
// content or version stamp.
func NeedsUpdate(s Section, c Contribution) bool {
	return !SameContent(s.Content, c.Content) ||
		strings.TrimPrefix(s.Version, "v") != strings.TrimPrefix(c.Version, "v")
}

var placeholderRe = regexp.MustCompile(`__[A-Z][A-Z0-9_]*__`)

// Substitute replaces __KEY__ placeholders with values[KEY].
func Substitute(text string, values map[string]string) string {
	if len(values) == 0 || !strings.Contains(text, "__") {
		return text
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "__"+k+"__", values[k])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Unresolved returns the distinct placeholders left in text.
func Unresolved(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range placeholderRe.FindAllString(text, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}
