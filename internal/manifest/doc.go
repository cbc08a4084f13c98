// Package manifest handles parsing and validation of tech pack manifests
// (techpack.yaml). A manifest declares a pack's identity, its typed
// components with dependency edges, its instructions-document section
// contributions, and the placeholder values those sections may reference.
// Manifests are validated against an embedded JSON Schema before typed
// decoding, then checked for cross-field consistency.
package manifest
