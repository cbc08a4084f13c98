// Package integrations wraps the external programs the sync engine drives:
// the host tool's CLI (service registration, plugin install), the package
// manager, git, and the shell. Every call goes through a Runner so tests
// can substitute a recorder for real processes.
package integrations
