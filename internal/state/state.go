package state

import "sort"

// SyncState is the persisted convergence state of one scope.
type SyncState struct {
	ConfiguredPacks    []string                   `json:"configuredPacks"`
	PackArtifacts      map[string]*ArtifactRecord `json:"packArtifacts"`
	ExcludedComponents map[string][]string        `json:"excludedComponents"`
	ResolvedValues     map[string]string          `json:"resolvedValues"`
}

// New returns an empty state.
func New() *SyncState {
	s := &SyncState{}
	s.init()
	return s
}

func (s *SyncState) init() {
	if s.ConfiguredPacks == nil {
		s.ConfiguredPacks = []string{}
	}
	if s.PackArtifacts == nil {
		s.PackArtifacts = make(map[string]*ArtifactRecord)
	}
	if s.ExcludedComponents == nil {
		s.ExcludedComponents = make(map[string][]string)
	}
	if s.ResolvedValues == nil {
		s.ResolvedValues = make(map[string]string)
	}
}

// IsConfigured reports whether pack id is configured in this scope.
func (s *SyncState) IsConfigured(id string) bool {
	for _, p := range s.ConfiguredPacks {
		if p == id {
			return true
		}
	}
	return false
}

// Record returns the artifact record of pack id, or an empty one.
func (s *SyncState) Record(id string) *ArtifactRecord {
	if r, ok := s.PackArtifacts[id]; ok && r != nil {
		return r
	}
	return &ArtifactRecord{}
}

// SetPack marks id configured with the given record.
func (s *SyncState) SetPack(id string, rec *ArtifactRecord) {
	s.init()
	if !s.IsConfigured(id) {
		s.ConfiguredPacks = append(s.ConfiguredPacks, id)
		sort.Strings(s.ConfiguredPacks)
	}
	if rec == nil {
		rec = &ArtifactRecord{}
	}
	s.PackArtifacts[id] = rec
}

// RemovePack drops id, its record and its exclusions.
func (s *SyncState) RemovePack(id string) {
	s.ConfiguredPacks = without(s.ConfiguredPacks, id)
	delete(s.PackArtifacts, id)
	delete(s.ExcludedComponents, id)
}

// Excluded returns the excluded component ids of pack id.
func (s *SyncState) Excluded(id string) []string {
	return s.ExcludedComponents[id]
}

// SetExcluded replaces the exclusions of pack id. An empty list clears them.
func (s *SyncState) SetExcluded(id string, components []string) {
	s.init()
	if len(components) == 0 {
		delete(s.ExcludedComponents, id)
		return
	}
	out := append([]string(nil), components...)
	sort.Strings(out)
	s.ExcludedComponents[id] = out
}

// Normalize restores the invariant that configured packs and artifact
// record keys are the same set. Records without a configured pack are
// dropped when empty, otherwise their pack is marked configured so the
// artifacts are never forgotten.
func (s *SyncState) Normalize() {
	s.init()
	for id, rec := range s.PackArtifacts {
		if s.IsConfigured(id) {
			continue
		}
		if rec == nil || rec.IsEmpty() {
			delete(s.PackArtifacts, id)
			continue
		}
		s.ConfiguredPacks = append(s.ConfiguredPacks, id)
	}
	for _, id := range s.ConfiguredPacks {
		if s.PackArtifacts[id] == nil {
			s.PackArtifacts[id] = &ArtifactRecord{}
		}
		s.PackArtifacts[id].fillNil()
	}
	for id := range s.ExcludedComponents {
		if !s.IsConfigured(id) {
			delete(s.ExcludedComponents, id)
		}
	}
	sort.Strings(s.ConfiguredPacks)
}
