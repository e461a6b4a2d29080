// Package buildplan decorates a loaded package graph with per-target and
// per-product build settings for one concrete build environment: the
// source file list, object output paths, the module name, and the
// argument vector a build engine would pass to a compile or link step.
// It does not invoke a compiler; lowering a plan into byte-for-byte
// command descriptions is pkg/buildmanifest's job.
package buildplan

import (
	"path"
	"strings"

	"github.com/forgepm/forge/pkg/graph"
	"github.com/forgepm/forge/pkg/manifest"
)

// Language distinguishes the two target kinds a description can describe.
type Language int

const (
	LanguageSwift Language = iota
	LanguageClang
)

func (l Language) String() string {
	if l == LanguageSwift {
		return "swift"
	}
	return "clang"
}

// DebuggingStrategy selects how debug info survives into the linked
// product. Darwin keeps it in a companion dSYM bundle; everywhere else
// Swift wraps DWARF into the object file itself with a module-wrap step.
type DebuggingStrategy int

const (
	DebuggingStrategyDsym DebuggingStrategy = iota
	DebuggingStrategyModulewrap
)

// BuildEnvironment is the platform+configuration pair every description in
// a plan is conditioned on.
type BuildEnvironment struct {
	Platform      string // "macosx", "linux", "windows", ...
	Configuration string // "debug" or "release"

	// DebuggingStrategy is always derived from Platform by New, replacing
	// any value the caller set: DebuggingStrategyDsym on "macosx",
	// modulewrap elsewhere.
	DebuggingStrategy DebuggingStrategy
}

func (e BuildEnvironment) resolveDebuggingStrategy() DebuggingStrategy {
	if e.Platform == "macosx" {
		return DebuggingStrategyDsym
	}
	return DebuggingStrategyModulewrap
}

// TargetBuildDescription is the decoration attached to one ResolvedTarget.
type TargetBuildDescription struct {
	Target   graph.TargetID
	Language Language

	// ModuleName is a C99-valid mangling of the target name: ASCII letters
	// and digits survive, each run of any other bytes becomes a single '_',
	// and a leading digit gets an underscore prefix.
	ModuleName string

	// Sources are resolved, package-root-relative paths: either the
	// manifest's explicit list, or the result of discovering source
	// files under the target's root when the manifest left it empty.
	Sources []string

	// IntermediatesDir is the target's scratch directory for object
	// files, the module file, and any module-wrap output.
	IntermediatesDir string

	// ObjectPaths has one entry per source, in the same order as
	// Sources.
	ObjectPaths []string

	// LibraryBinaryPaths lists the binary outputs of every library
	// product this target transitively depends on, in dependency-first
	// order, for passing to the linker's library search path.
	LibraryBinaryPaths []string

	// Arguments is the argument vector shared by every job derived from
	// this target: module name, target triple, optimization/debug
	// flags, and import/library search paths. pkg/buildmanifest appends
	// the per-source or per-job file arguments (-c/-o and friends) on
	// top of this when it lowers the target into commands. It is data
	// only; this package never executes it.
	Arguments []string

	// ModuleFilePath is the .swiftmodule this target emits, meaningful
	// only when Language == LanguageSwift.
	ModuleFilePath string
}

// ProductBuildDescription is the decoration attached to one ResolvedProduct.
type ProductBuildDescription struct {
	Product graph.ProductID
	Kind    manifest.ProductKind

	// BinaryPath is the product's single linked or archived output.
	BinaryPath string

	// ObjectPaths aggregates the object paths of every target in the
	// product's recursive target closure.
	ObjectPaths []string

	// LibraryBinaryPaths lists the binary outputs of every library
	// product this product transitively depends on.
	LibraryBinaryPaths []string

	// Arguments is the full archive or link argument vector.
	Arguments []string
}

// Plan maps every ResolvedTarget and ResolvedProduct reachable in g to its
// build description for one BuildEnvironment.
type Plan struct {
	Environment BuildEnvironment
	Graph       *graph.Graph

	targets  map[graph.TargetID]*TargetBuildDescription
	products map[graph.ProductID]*ProductBuildDescription
}

// Target returns the description for id, or false if id is not part of
// this plan (a missing target is a caller error; see MissingNode).
func (p *Plan) Target(id graph.TargetID) (*TargetBuildDescription, bool) {
	d, ok := p.targets[id]
	return d, ok
}

// Product returns the description for id, or false if id is not part of
// this plan.
func (p *Plan) Product(id graph.ProductID) (*ProductBuildDescription, bool) {
	d, ok := p.products[id]
	return d, ok
}

// mangleModuleName turns an arbitrary target name into a C99-valid
// identifier: runs of non-identifier bytes collapse to a single '_', and a
// leading digit gets an underscore prefix so the result never starts with
// one.
func mangleModuleName(name string) string {
	var b strings.Builder
	prevUnderscore := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
			prevUnderscore = false
		default:
			if !prevUnderscore {
				b.WriteByte('_')
				prevUnderscore = true
			}
		}
	}
	out := b.String()
	if out == "" {
		return "_"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

// targetRoot returns the directory a target's sources are discovered
// under when the manifest leaves Target.Sources empty: the declared Path,
// or the "Sources/<name>" convention.
func targetRoot(t *graph.ResolvedTarget) string {
	if t.Path != "" {
		return t.Path
	}
	return path.Join("Sources", t.Name)
}
