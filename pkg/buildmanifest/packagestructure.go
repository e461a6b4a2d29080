package buildmanifest

import (
	"path"

	"github.com/karrick/godirwalk"

	"github.com/forgepm/forge/pkg/graph"
	"github.com/forgepm/forge/pkg/manifest"
)

// packageStructureOutput is the virtual node downstream tools poll to learn
// whether any root package's manifest, directory layout, or lock file has
// changed since the last build.
const packageStructureOutput = "PackageStructure"

// packageStructureCommand enumerates every root package's directory tree
// (as DirectoryStructureNode inputs, one per root package since that's the
// granularity a manifest edit or a new/removed source directory needs to be
// noticed at), each root's manifest path, and pinsPath (the workspace's
// lock/resolved file), producing the single PackageStructure command.
//
// A root package's FS may be backed by a real on-disk directory or by an
// in-memory fake (tests, or a future non-local FS view); godirwalk.Walk is
// used for its own directory enumeration here, separate from the abstract
// manifest.FileSystem.Walk pkg/buildplan's source discovery goes through,
// because PackageStructure specifically needs concrete directory nodes on
// the real filesystem, not a filesystem-agnostic listing. When a root's FS
// root isn't a real path (no on-disk directory to walk), that root still
// contributes its manifest path; only the directory-structure enumeration
// for it is skipped.
func packageStructureCommand(g *graph.Graph, pinsPath string) Command {
	var inputs []Node
	for _, pkg := range g.Packages {
		if !pkg.IsRoot {
			continue
		}
		root := pkg.FS.Root()
		inputs = append(inputs, dirNode(root))
		godirwalk.Walk(root, &godirwalk.Options{
			Unsorted: true,
			Callback: func(p string, de *godirwalk.Dirent) error {
				if de.IsDir() && p != root {
					inputs = append(inputs, dirNode(p))
				}
				return nil
			},
		})
		inputs = append(inputs, fileNode(path.Join(root, manifest.ManifestFileName)))
	}
	if pinsPath != "" {
		inputs = append(inputs, fileNode(pinsPath))
	}

	return Command{
		Name:    "PackageStructure",
		Tool:    "package-structure",
		Inputs:  inputs,
		Outputs: []Node{virtualNode(packageStructureOutput)},
	}
}
