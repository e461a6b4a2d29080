package manifest

// FileSystem is the read-only view a ManifestLoader (and later the Package
// Graph Loader / Build Manifest Generator) reads a package's tree through.
// It is satisfied both by a plain on-disk checkout and by the Repository
// Provider's immutable per-revision file view ("openFileView"), without the
// manifest package needing to import the repository package.
type FileSystem interface {
	// ReadFile returns the full contents of the file at path, relative to
	// the view's root.
	ReadFile(path string) ([]byte, error)
	// Stat reports whether path exists and, if so, whether it is a
	// directory.
	Stat(path string) (exists bool, isDir bool, err error)
	// Walk invokes fn for every entry reachable from root, relative paths,
	// in deterministic lexical order.
	Walk(root string, fn func(path string, isDir bool) error) error
	// Root returns an absolute path suitable for passing to external
	// tooling (the build engine, directory-structure build nodes). It may
	// be a synthetic path for file views that aren't materialized.
	Root() string
}
