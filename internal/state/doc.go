// Package state holds the persisted convergence state of one scope: which
// packs are configured, every artifact each pack has placed (its
// ArtifactRecord), per-pack component exclusions and the last resolved
// placeholder values. The Store reads and atomically rewrites the JSON file.
package state
