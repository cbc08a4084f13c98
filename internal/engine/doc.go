// Package engine converges a scope to the selected packs.
//
// A sync loads the scope's SyncState, derives for every desired pack the
// ArtifactRecord it should have, diffs that against the stored record kind
// by kind, and applies only the difference. Individual artifact failures
// are collected in the Report rather than aborting the run; the state file
// and the reference index are written once, at the end, as the commit
// point. Re-running with the same selection performs no operations.
package engine
