// Package registry normalizes pack sources into uniform Pack values and
// resolves component install order. A Source is a tagged variant (compiled
// into the binary, or an external manifest on disk); Load turns every source
// into a *Pack, isolating per-pack failures so one broken manifest never
// hides the others. Registry values are passed explicitly to callers.
package registry
