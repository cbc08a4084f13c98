// Package installer performs single artifact installs and removals: copying
// pack files into a scope, editing ignore files, and driving the external
// collaborators for services, plugins, packages and shell actions.
//
// Each function does exactly one thing and is safe to repeat. Deciding
// which artifacts to touch belongs to the engine.
package installer
