// Package settings merges pack-declared settings into the host tool's
// shared settings document without ever clobbering what the user wrote.
//
// The document keeps hook registrations and plugin enablement as typed
// fields and every other top-level key in an open tree that round-trips
// unchanged. Writes are fill-if-absent; hook registrations are
// deduplicated by command. A side ledger records which pack owns each key
// path the engine wrote, so removal only ever touches engine-owned keys.
package settings
