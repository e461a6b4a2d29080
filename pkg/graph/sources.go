package graph

import (
	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/manifest"
)

// ManifestSource is one already-loaded manifest plus the filesystem view it
// was loaded from. Load never touches a Container or Repository itself; the
// Workspace is responsible for resolving every identity in a resolve.Result
// to one of these before calling Load.
type ManifestSource struct {
	Identity ident.Identity
	Manifest *manifest.Manifest
	FS       manifest.FileSystem
}
