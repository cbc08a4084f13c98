// Package userdata resolves the ~/.mcs/ directory layout: the global sync
// state, the cross-project reference index, the process lock file, the
// external pack registry and checkouts, and the host tool's global home.
// Every location honors an MCS_* environment override so tests and
// sandboxed runs never touch the real home directory.
package userdata
