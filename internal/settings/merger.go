package settings

import "fmt"

// ConflictError reports a key declared by two packs. Ownership is
// exclusive: the existing owner keeps it.
type ConflictError struct {
	Key      string
	Owner    string
	Claimant string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("settings key %q is owned by pack %s; pack %s cannot claim it", e.Key, e.Owner, e.Claimant)
}

// Outcome describes what Claim did with a key.
type Outcome int

const (
	// Written means the key was absent and is now engine-owned.
	Written Outcome = iota
	// Kept means the pack already owned the key; its value was left as is.
	Kept
	// UserOwned means the key already existed without an engine owner and
	// was left untouched.
	UserOwned
)

// Merger applies ownership-aware changes to a settings document.
type Merger struct {
	Doc    *Document
	Ledger *Ledger
}

// NewMerger pairs a document with its ledger.
func NewMerger(doc *Document, ledger *Ledger) *Merger {
	return &Merger{Doc: doc, Ledger: ledger}
}

// Classify reports what Claim would do for key without changing anything.
func (m *Merger) Classify(pack, key string) (Outcome, error) {
	if o, ok := m.Ledger.Owner(key); ok {
		if o.Pack != pack {
			return 0, &ConflictError{Key: key, Owner: o.Pack, Claimant: pack}
		}
		return Kept, nil
	}
	if _, exists := m.Doc.Lookup(key); exists {
		return UserOwned, nil
	}
	return Written, nil
}

// Claim fills key with value on behalf of pack. Existing values always
// win; only absent keys are written and recorded in the ledger.
func (m *Merger) Claim(pack, version, key string, value interface{}) (Outcome, error) {
	out, err := m.Classify(pack, key)
	if err != nil {
		return 0, err
	}
	switch out {
	case Kept:
		m.Ledger.Set(key, pack, version)
	case Written:
		written, err := m.Doc.SetIfAbsent(key, value)
		if err != nil {
			return 0, err
		}
		if !written {
			return UserOwned, nil
		}
		m.Ledger.Set(key, pack, version)
	}
	return out, nil
}

// Release removes key if pack owns it. Keys the ledger does not attribute
// to pack are never touched. It returns whether the key was owned.
func (m *Merger) Release(pack, key string) bool {
	o, ok := m.Ledger.Owner(key)
	if !ok || o.Pack != pack {
		return false
	}
	m.Doc.Delete(key)
	m.Ledger.Delete(key)
	return true
}
