// Package picker implements the numbered-menu prompts behind
// `mcs sync --customize`.
package picker

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bguidolim/mcs/internal/registry"
)

// Picker reads selections from r and writes menus to w.
type Picker struct {
	reader *bufio.Reader
	w      io.Writer
}

// New returns a picker over r and w.
func New(r io.Reader, w io.Writer) *Picker {
	return &Picker{reader: bufio.NewReader(r), w: w}
}

// IsTerminal reports whether f is a character device.
func IsTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// Packs asks which packs the scope should carry. Currently configured packs
// are preselected; a blank answer keeps them.
func (p *Picker) Packs(available []*registry.Pack, configured []string) ([]string, error) {
	if len(available) == 0 {
		return nil, fmt.Errorf("no packs available; register one with `mcs pack add`")
	}
	current := make(map[string]bool, len(configured))
	for _, id := range configured {
		current[id] = true
	}

	items := make([]string, len(available))
	for i, pk := range available {
		mark := " "
		if current[pk.ID] {
			mark = "x"
		}
		items[i] = fmt.Sprintf("[%s] %s (%s) %s", mark, pk.ID, pk.Version, pk.Description)
	}

	picked, blank, err := p.selectMany("Select packs:", items)
	if err != nil {
		return nil, err
	}
	if blank {
		ids := append([]string(nil), configured...)
		sort.Strings(ids)
		return ids, nil
	}
	ids := make([]string, 0, len(picked))
	for _, i := range picked {
		ids = append(ids, available[i].ID)
	}
	sort.Strings(ids)
	return ids, nil
}

// Exclusions asks which of pack's components to leave out. Required
// components cannot be excluded; a blank answer keeps excluded unchanged.
func (p *Picker) Exclusions(pack *registry.Pack, excluded []string) ([]string, error) {
	current := make(map[string]bool, len(excluded))
	for _, id := range excluded {
		current[id] = true
	}

	items := make([]string, len(pack.Components))
	for i, c := range pack.Components {
		mark := "x"
		switch {
		case c.Required:
			mark = "*"
		case current[c.ID]:
			mark = " "
		}
		items[i] = fmt.Sprintf("[%s] %s (%s)", mark, c.Label(), c.Type)
	}

	prompt := fmt.Sprintf("Components of %s to exclude ([*] required):", pack.ID)
	picked, blank, err := p.selectMany(prompt, items)
	if err != nil {
		return nil, err
	}
	if blank {
		return append([]string(nil), excluded...), nil
	}

	var out []string
	for _, i := range picked {
		c := pack.Components[i]
		if c.Required {
			fmt.Fprintf(p.w, "%s is required and stays installed\n", c.ID)
			continue
		}
		out = append(out, c.ID)
	}
	sort.Strings(out)
	return out, nil
}

// selectMany presents a numbered list and returns the chosen indexes in
// ascending order. Input is a comma or space separated list of numbers and
// ranges such as "1,3-4". blank is true when the answer was empty.
func (p *Picker) selectMany(prompt string, items []string) (picked []int, blank bool, err error) {
	fmt.Fprintf(p.w, "\n%s\n", prompt)
	for i, item := range items {
		fmt.Fprintf(p.w, "  %d) %s\n", i+1, item)
	}
	fmt.Fprintf(p.w, "Enter numbers [1-%d], blank to keep: ", len(items))

	line, err := p.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, false, fmt.Errorf("reading selection: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, true, nil
	}
	if strings.EqualFold(line, "none") {
		return nil, false, nil
	}

	seen := make(map[int]bool)
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' })
	for _, f := range fields {
		lo, hi, err := parseRange(f, len(items))
		if err != nil {
			return nil, false, err
		}
		for n := lo; n <= hi; n++ {
			if !seen[n-1] {
				seen[n-1] = true
				picked = append(picked, n-1)
			}
		}
	}
	sort.Ints(picked)
	return picked, false, nil
}

func parseRange(f string, n int) (int, int, error) {
	loStr, hiStr, isRange := strings.Cut(f, "-")
	lo, err := strconv.Atoi(loStr)
	if err != nil || lo < 1 || lo > n {
		return 0, 0, fmt.Errorf("invalid selection %q: choose 1-%d", f, n)
	}
	if !isRange {
		return lo, lo, nil
	}
	hi, err := strconv.Atoi(hiStr)
	if err != nil || hi < lo || hi > n {
		return 0, 0, fmt.Errorf("invalid selection %q: choose 1-%d", f, n)
	}
	return lo, hi, nil
}
