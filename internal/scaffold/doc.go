// Package scaffold generates a starter tech pack from embedded templates
// for `mcs pack init`.
package scaffold
