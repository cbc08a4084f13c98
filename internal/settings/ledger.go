package settings

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bguidolim/mcs/internal/platform"
	"github.com/spf13/afero"
)

// LedgerVersion is the ledger format version written in the header.
const LedgerVersion = 1

const ledgerHeader = "# mcs settings ownership ledger v"

// Owner is the pack (and its version) that wrote a key.
type Owner struct {
	Pack    string
	Version string
}

// Ledger records which settings key paths the engine wrote, and for whom.
// Keys absent from the ledger belong to the user.
type Ledger struct {
	owners map[string]Owner
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{owners: make(map[string]Owner)}
}

// ParseLedger reads the line format: a header comment, then one
// keyPath=pack@version record per line.
func ParseLedger(data string) (*Ledger, error) {
	l := NewLedger()
	sc := bufio.NewScanner(strings.NewReader(data))
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if v, ok := strings.CutPrefix(line, ledgerHeader); ok {
				var version int
				if _, err := fmt.Sscanf(v, "%d", &version); err == nil && version > LedgerVersion {
					return nil, fmt.Errorf("ledger format v%d is newer than supported v%d", version, LedgerVersion)
				}
			}
			continue
		}
		i := strings.LastIndex(line, "=")
		if i <= 0 {
			return nil, fmt.Errorf("line %d: malformed ledger record %q", n, line)
		}
		key, owner := line[:i], line[i+1:]
		pack, version, _ := strings.Cut(owner, "@")
		if pack == "" {
			return nil, fmt.Errorf("line %d: ledger record %q has no owner", n, line)
		}
		l.owners[key] = Owner{Pack: pack, Version: version}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return l, nil
}

// String renders the ledger in its file format, keys sorted.
func (l *Ledger) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%d\n", ledgerHeader, LedgerVersion)
	for _, k := range l.Keys() {
		o := l.owners[k]
		fmt.Fprintf(&b, "%s=%s@%s\n", k, o.Pack, o.Version)
	}
	return b.String()
}

// LoadLedger reads the ledger file. A missing file yields an empty ledger.
func LoadLedger(fsys afero.Fs, path string) (*Ledger, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewLedger(), nil
		}
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	l, err := ParseLedger(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing ledger %s: %w", path, err)
	}
	return l, nil
}

// SaveLedger writes the ledger atomically. An empty ledger removes the file.
func SaveLedger(fsys afero.Fs, path string, l *Ledger) error {
	if len(l.owners) == 0 {
		if err := fsys.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing ledger %s: %w", path, err)
		}
		return nil
	}
	if err := platform.WriteFileAtomic(fsys, path, []byte(l.String()), 0644); err != nil {
		return fmt.Errorf("writing ledger %s: %w", path, err)
	}
	return nil
}

// Owner returns the owner of key.
func (l *Ledger) Owner(key string) (Owner, bool) {
	o, ok := l.owners[key]
	return o, ok
}

// Set records pack at version as the owner of key.
func (l *Ledger) Set(key, pack, version string) {
	l.owners[key] = Owner{Pack: pack, Version: version}
}

// Delete forgets key.
func (l *Ledger) Delete(key string) {
	delete(l.owners, key)
}

// Keys returns every owned key sorted.
func (l *Ledger) Keys() []string {
	keys := make([]string, 0, len(l.owners))
	for k := range l.owners {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KeysOf returns the keys owned by pack, sorted.
func (l *Ledger) KeysOf(pack string) []string {
	var keys []string
	for _, k := range l.Keys() {
		if l.owners[k].Pack == pack {
			keys = append(keys, k)
		}
	}
	return keys
}

// StaleKeys returns keys owned by pack that it no longer declares.
func (l *Ledger) StaleKeys(pack string, declared []string) []string {
	want := make(map[string]bool, len(declared))
	for _, k := range declared {
		want[k] = true
	}
	var stale []string
	for _, k := range l.KeysOf(pack) {
		if !want[k] {
			stale = append(stale, k)
		}
	}
	return stale
}
