// Package compose maintains the managed instructions document. Managed
// sections are delimited by versioned begin/end comment markers and may be
// interleaved with free-form user text, which is always preserved.
//
// Every function here is pure: text in, text out. Structural damage such
// as a begin marker without its end marker turns the affected operation
// into a no-op that reports an *UnpairedMarkerError instead of guessing
// where the section ends.
package compose
