package registry

import (
	"embed"
	"io/fs"
)

// CorePackID is the built-in pack every project scope carries.
const CorePackID = "core"

//go:embed core
var coreFS embed.FS

// BuiltinSources returns the sources of packs compiled into the binary.
func BuiltinSources() []Source {
	sub, err := fs.Sub(coreFS, "core")
	if err != nil {
		panic(err) // embedded path is fixed at build time
	}
	return []Source{CompiledSource(CorePackID, sub)}
}
