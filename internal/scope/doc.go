// Package scope identifies the unit of convergence, a project directory or
// the global environment, and maps it to the files the engine manages
// there.
package scope
