// Package platform provides the OS-level primitives the sync engine relies
// on: an exclusive, non-blocking advisory process lock (flock on Unix,
// LockFileEx on Windows), write-temp-then-rename atomic file writes over an
// afero filesystem, and permission changes that are no-ops on Windows.
package platform
