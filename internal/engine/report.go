package engine

import (
	"fmt"
	"io"
	"strings"

	"github.com/bguidolim/mcs/internal/state"
)

// Op is what happens to one artifact.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
	OpSkip   Op = "skip"
)

// Operation is one planned or applied artifact change.
type Operation struct {
	Kind     state.Kind `json:"kind"`
	Artifact string     `json:"artifact"`
	Op       Op         `json:"op"`
	Note     string     `json:"note,omitempty"`

	keep bool // remove from the record but leave the shared resource in place
}

// PackStatus summarizes what a sync did to one pack.
type PackStatus string

const (
	StatusAdded      PackStatus = "added"
	StatusRemoved    PackStatus = "removed"
	StatusReconciled PackStatus = "reconciled"
	StatusUnchanged  PackStatus = "unchanged"
	StatusFailed     PackStatus = "failed"
)

// PackReport is the outcome for one pack.
type PackReport struct {
	Pack       string          `json:"pack"`
	Version    string          `json:"version,omitempty"`
	Status     PackStatus      `json:"status"`
	Operations []Operation     `json:"operations"`
	Failures   []*ApplyFailure `json:"-"`
	Warnings   []string        `json:"warnings,omitempty"`
	Err        error           `json:"-"`
}

// Changes counts operations other than skips.
func (p *PackReport) Changes() int {
	n := 0
	for _, op := range p.Operations {
		if op.Op != OpSkip {
			n++
		}
	}
	return n
}

// Report is the result of one sync.
type Report struct {
	Scope    string        `json:"scope"`
	DryRun   bool          `json:"dryRun"`
	Packs    []*PackReport `json:"packs"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Pack returns the report of pack id.
func (r *Report) Pack(id string) *PackReport {
	for _, p := range r.Packs {
		if p.Pack == id {
			return p
		}
	}
	return nil
}

// Changes counts operations other than skips across all packs.
func (r *Report) Changes() int {
	n := 0
	for _, p := range r.Packs {
		n += p.Changes()
	}
	return n
}

// Failures returns every artifact failure.
func (r *Report) Failures() []*ApplyFailure {
	var out []*ApplyFailure
	for _, p := range r.Packs {
		out = append(out, p.Failures...)
	}
	return out
}

// Failed reports whether any artifact failed or any pack could not be
// processed.
func (r *Report) Failed() bool {
	for _, p := range r.Packs {
		if p.Err != nil || len(p.Failures) > 0 {
			return true
		}
	}
	return false
}

// Print writes a human-readable summary grouped by pack.
func (r *Report) Print(w io.Writer) {
	title := "Sync " + r.Scope
	if r.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintln(w, title)

	if r.Changes() == 0 && !r.Failed() {
		for _, msg := range r.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", msg)
		}
		fmt.Fprintln(w, "Nothing to do.")
		return
	}

	for _, p := range r.Packs {
		if p.Changes() == 0 && p.Err == nil && len(p.Failures) == 0 && len(p.Warnings) == 0 {
			continue
		}
		header := p.Pack
		if p.Version != "" {
			header += " " + p.Version
		}
		fmt.Fprintf(w, "\n%s [%s]\n", header, p.Status)
		if p.Err != nil {
			fmt.Fprintf(w, "  error: %v\n", p.Err)
		}
		for _, op := range p.Operations {
			line := fmt.Sprintf("  %-6s %-16s %s", op.Op, op.Kind, op.Artifact)
			if op.Note != "" {
				line += " (" + op.Note + ")"
			}
			fmt.Fprintln(w, line)
		}
		for _, f := range p.Failures {
			fmt.Fprintf(w, "  failed: %s %s: %v\n", f.Kind, f.Artifact, f.Err)
		}
		for _, msg := range p.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", msg)
		}
	}
	for _, msg := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
}

// PackSummary is one configured pack in a status listing.
type PackSummary struct {
	Pack      string             `json:"pack"`
	Total     int                `json:"total"`
	Artifacts map[state.Kind]int `json:"artifacts"`
	Excluded  []string           `json:"excluded,omitempty"`
}

// Summary is the stored state of one scope, counted per kind.
type Summary struct {
	Scope string        `json:"scope"`
	Packs []PackSummary `json:"packs"`
}

// Summarize counts the artifacts each configured pack holds in st.
func Summarize(scopeName string, st *state.SyncState) *Summary {
	s := &Summary{Scope: scopeName, Packs: []PackSummary{}}
	for _, id := range st.ConfiguredPacks {
		rec := st.Record(id)
		ps := PackSummary{Pack: id, Total: rec.Count(), Artifacts: make(map[state.Kind]int), Excluded: st.Excluded(id)}
		for _, k := range state.Kinds {
			if n := len(rec.Items(k)); n > 0 {
				ps.Artifacts[k] = n
			}
		}
		s.Packs = append(s.Packs, ps)
	}
	return s
}

// Print writes the summary as an aligned listing.
func (s *Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "Scope: %s\n", s.Scope)
	if len(s.Packs) == 0 {
		fmt.Fprintln(w, "No packs configured.")
		return
	}
	width := 0
	for _, p := range s.Packs {
		if len(p.Pack) > width {
			width = len(p.Pack)
		}
	}
	for _, p := range s.Packs {
		var parts []string
		for _, k := range state.Kinds {
			if n := p.Artifacts[k]; n > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", n, k))
			}
		}
		line := fmt.Sprintf("  %-*s  %d artifact(s)", width, p.Pack, p.Total)
		if len(parts) > 0 {
			line += ": " + strings.Join(parts, ", ")
		}
		if len(p.Excluded) > 0 {
			line += " [excluded: " + strings.Join(p.Excluded, ", ") + "]"
		}
		fmt.Fprintln(w, line)
	}
}
