package compose

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	beginRe = regexp.MustCompile(`^<!--\s*begin:([A-Za-z0-9._-]+)(?:\s+v(\S+))?\s*-->$`)
	endRe   = regexp.MustCompile(`^<!--\s*end:([A-Za-z0-9._-]+)\s*-->$`)
)

// Section is one well-formed managed section of a document.
type Section struct {
	ID      string
	Version string
	Content string

	begin, end int // line indices of the markers
}

// Problem describes a structural defect around one identifier.
type Problem struct {
	ID     string
	Line   int // 1-based
	Reason string
}

func (p Problem) String() string {
	return fmt.Sprintf("line %d: section %q %s", p.Line, p.ID, p.Reason)
}

// UnpairedMarkerError reports that an operation on a section was skipped
// because the document has damaged markers. The document is returned unchanged.
type UnpairedMarkerError struct {
	ID       string
	Problems []Problem
}

func (e *UnpairedMarkerError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return fmt.Sprintf("section %q left unchanged: %s", e.ID, strings.Join(parts, "; "))
}

// BeginMarker returns the begin marker line for a section.
func BeginMarker(id, version string) string {
	if version == "" {
		return fmt.Sprintf("<!-- begin:%s -->", id)
	}
	return fmt.Sprintf("<!-- begin:%s v%s -->", id, strings.TrimPrefix(version, "v"))
}

// EndMarker returns the end marker line for a section.
func EndMarker(id string) string {
	return fmt.Sprintf("<!-- end:%s -->", id)
}

// layout is the parsed structure of a document.
type layout struct {
	lines    []string
	sections []Section
	problems []Problem
}

func splitLines(doc string) []string {
	return strings.Split(doc, "\n")
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// scan parses doc into well-formed sections and structural problems.
func scan(doc string) layout {
	lines := splitLines(doc)
	l := layout{lines: lines}

	open := -1
	var openID, openVersion string
	seen := make(map[string]int)

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if m := beginRe.FindStringSubmatch(line); m != nil {
			if open >= 0 {
				l.problems = append(l.problems, Problem{ID: openID, Line: open + 1, Reason: "has a begin marker with no matching end marker"})
			}
			open, openID, openVersion = i, m[1], m[2]
			continue
		}
		m := endRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if open < 0 || m[1] != openID {
			l.problems = append(l.problems, Problem{ID: m[1], Line: i + 1, Reason: "has an end marker with no matching begin marker"})
			continue
		}
		if first, dup := seen[openID]; dup {
			l.problems = append(l.problems, Problem{ID: openID, Line: open + 1, Reason: fmt.Sprintf("is duplicated (first at line %d)", first+1)})
		} else {
			seen[openID] = open
		}
		l.sections = append(l.sections, Section{
			ID:      openID,
			Version: openVersion,
			Content: joinLines(lines[open+1 : i]),
			begin:   open,
			end:     i,
		})
		open = -1
	}
	if open >= 0 {
		l.problems = append(l.problems, Problem{ID: openID, Line: open + 1, Reason: "has a begin marker with no matching end marker"})
	}
	return l
}

func (l layout) find(id string) (Section, bool) {
	for _, s := range l.sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// guard blocks every write to a document with damaged markers, whichever
// section they belong to.
func (l layout) guard(id string) error {
	if len(l.problems) > 0 {
		return &UnpairedMarkerError{ID: id, Problems: l.problems}
	}
	return nil
}

// ParseSections returns the well-formed managed sections of doc in order.
func ParseSections(doc string) []Section {
	return scan(doc).sections
}

// Problems returns the structural defects of doc's markers.
func Problems(doc string) []Problem {
	return scan(doc).problems
}
