package compose

import (
	"strings"
)

// Contribution is one section a pack wants in the document.
type Contribution struct {
	ID      string
	Version string
	Content string
}

// block renders a section with its markers as lines.
func block(c Contribution) []string {
	lines := []string{BeginMarker(c.ID, c.Version)}
	if body := strings.TrimSpace(c.Content); body != "" {
		lines = append(lines, splitLines(body)...)
	}
	return append(lines, EndMarker(c.ID))
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

// ComposeOrUpdate merges contributions into existing. Placeholders in
// contribution content are substituted from values first.
//
// With no managed sections in existing, a fresh document is emitted:
// sections in contribution order separated by blank lines, followed by any
// prior free-form text as a trailing block. Otherwise each contribution
// replaces its section in place, new sections are appended after the last
// managed section, and all text outside sections is preserved. Sections
// with damaged markers are skipped and reported in warnings.
func ComposeOrUpdate(existing string, contributions []Contribution, values map[string]string) (string, []string) {
	rendered := make([]Contribution, len(contributions))
	for i, c := range contributions {
		c.Content = Substitute(c.Content, values)
		rendered[i] = c
	}

	l := scan(existing)
	if len(l.sections) == 0 && len(l.problems) == 0 {
		return fresh(existing, rendered), nil
	}

	doc := existing
	var warnings []string
	for _, c := range rendered {
		next, err := UpsertSection(doc, c)
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		doc = next
	}
	return doc, warnings
}

func fresh(userText string, contributions []Contribution) string {
	var lines []string
	for i, c := range contributions {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, block(c)...)
	}
	if trailing := strings.Trim(userText, "\n"); !isBlank(trailing) {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, splitLines(trailing)...)
	}
	if len(lines) == 0 {
		return ""
	}
	return joinLines(lines) + "\n"
}

// ReplaceSection substitutes the content and version stamp of section id.
// A section whose markers are damaged is left alone and an
// *UnpairedMarkerError is returned with the unchanged document. A missing
// section leaves the document unchanged with found=false.
func ReplaceSection(doc string, c Contribution) (out string, found bool, err error) {
	l := scan(doc)
	if err := l.guard(c.ID); err != nil {
		return doc, false, err
	}
	s, ok := l.find(c.ID)
	if !ok {
		return doc, false, nil
	}

	lines := make([]string, 0, len(l.lines))
	lines = append(lines, l.lines[:s.begin]...)
	lines = append(lines, block(c)...)
	lines = append(lines, l.lines[s.end+1:]...)
	return joinLines(lines), true, nil
}

// UpsertSection replaces section c.ID or, when absent, adds it: after the
// last managed section if there is one, otherwise ahead of the existing
// free-form text.
func UpsertSection(doc string, c Contribution) (string, error) {
	out, found, err := ReplaceSection(doc, c)
	if err != nil || found {
		return out, err
	}

	l := scan(doc)
	if len(l.sections) == 0 {
		return fresh(doc, []Contribution{c}), nil
	}

	at := l.sections[len(l.sections)-1].end + 1
	insert := append([]string{""}, block(c)...)
	// Keep a blank line between the new section and user text that follows.
	if at < len(l.lines) && !isBlank(l.lines[at]) {
		insert = append(insert, "")
	}

	lines := make([]string, 0, len(l.lines)+len(insert))
	lines = append(lines, l.lines[:at]...)
	lines = append(lines, insert...)
	lines = append(lines, l.lines[at:]...)
	return joinLines(lines), nil
}

// RemoveSection deletes section id and at most one adjacent blank line.
// Damaged markers make it a no-op returning *UnpairedMarkerError; an absent
// section is a no-op without error.
func RemoveSection(doc, id string) (string, error) {
	l := scan(doc)
	if err := l.guard(id); err != nil {
		return doc, err
	}
	s, ok := l.find(id)
	if !ok {
		return doc, nil
	}

	lines := make([]string, 0, len(l.lines))
	lines = append(lines, l.lines[:s.begin]...)
	lines = append(lines, l.lines[s.end+1:]...)

	at := s.begin
	last := len(lines) - 1
	switch {
	case at < last && isBlank(lines[at]):
		lines = append(lines[:at], lines[at+1:]...)
	case at > 0 && isBlank(lines[at-1]):
		lines = append(lines[:at-1], lines[at:]...)
	}

	out := joinLines(lines)
	if isBlank(out) {
		return "", nil
	}
	return out, nil
}
