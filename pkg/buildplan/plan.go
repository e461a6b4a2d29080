package buildplan

import (
	"path"

	"github.com/forgepm/forge/pkg/graph"
	"github.com/forgepm/forge/pkg/manifest"
)

// outputRoot is the build directory every description's paths are rooted
// under, conditioned on the environment so debug and release builds never
// collide.
func outputRoot(env BuildEnvironment) string {
	return path.Join(".build", env.Platform, env.Configuration)
}

// New decorates every target and product reachable in g with a build
// description for env. It never mutates g.
func New(g *graph.Graph, env BuildEnvironment) (*Plan, error) {
	env.DebuggingStrategy = env.resolveDebuggingStrategy()

	p := &Plan{
		Environment: env,
		Graph:       g,
		targets:     make(map[graph.TargetID]*TargetBuildDescription),
		products:    make(map[graph.ProductID]*ProductBuildDescription),
	}

	for _, pkg := range g.Packages {
		for _, t := range pkg.Targets {
			desc, err := p.buildTarget(pkg, t)
			if err != nil {
				return nil, err
			}
			p.targets[t.ID] = desc
		}
	}

	for _, pkg := range g.Packages {
		for _, prod := range pkg.Products {
			desc, err := p.buildProduct(pkg, prod)
			if err != nil {
				return nil, err
			}
			p.products[prod.ID] = desc
		}
	}

	// Library paths reference other products' descriptions, so this pass
	// runs only once every product has at least its own BinaryPath
	// assigned above.
	for _, pkg := range g.Packages {
		for _, t := range pkg.Targets {
			p.targets[t.ID].LibraryBinaryPaths = p.transitiveLibraryPaths(t.Dependencies, nil)
		}
	}

	return p, nil
}

func (p *Plan) buildTarget(pkg *graph.ResolvedPackage, t *graph.ResolvedTarget) (*TargetBuildDescription, error) {
	root := targetRoot(t)
	sources, err := discoverSources(pkg.FS, root, t.Sources)
	if err != nil {
		return nil, err
	}
	lang := languageOf(sources)
	modName := mangleModuleName(t.Name)

	intermediates := path.Join(outputRoot(p.Environment), string(pkg.Identity), t.Name+".build")

	objects := make([]string, len(sources))
	for i, s := range sources {
		objects[i] = path.Join(intermediates, objectBaseName(s)+".o")
	}

	desc := &TargetBuildDescription{
		Target:           t.ID,
		Language:         lang,
		ModuleName:       modName,
		Sources:          sources,
		IntermediatesDir: intermediates,
		ObjectPaths:      objects,
		Arguments:        p.commonArguments(lang, modName, intermediates),
	}
	if lang == LanguageSwift {
		desc.ModuleFilePath = path.Join(intermediates, modName+".swiftmodule")
	}
	return desc, nil
}

func (p *Plan) commonArguments(lang Language, modName, intermediates string) []string {
	triple := targetTriple(p.Environment.Platform)
	var args []string
	switch lang {
	case LanguageSwift:
		args = append(args, "swiftc", "-module-name", modName, "-target", triple)
	default:
		args = append(args, "clang", "-target", triple)
	}
	if p.Environment.Configuration == "release" {
		args = append(args, "-O")
	} else {
		args = append(args, lang.debugFlag())
	}
	if lang == LanguageSwift && p.Environment.DebuggingStrategy == DebuggingStrategyModulewrap {
		args = append(args, "-g")
	}
	args = append(args, "-I", intermediates)
	return args
}

func (l Language) debugFlag() string {
	if l == LanguageSwift {
		return "-Onone"
	}
	return "-O0"
}

func targetTriple(platform string) string {
	switch platform {
	case "macosx":
		return "x86_64-apple-macosx"
	case "windows":
		return "x86_64-unknown-windows-msvc"
	default:
		return "x86_64-unknown-linux-gnu"
	}
}

func objectBaseName(sourcePath string) string {
	base := path.Base(sourcePath)
	return base[:len(base)-len(path.Ext(base))]
}

func (p *Plan) buildProduct(pkg *graph.ResolvedPackage, prod *graph.ResolvedProduct) (*ProductBuildDescription, error) {
	modName := mangleModuleName(prod.Name)
	binaryPath := productBinaryPath(p.Environment, pkg, modName, prod.Kind)

	var objects []string
	seen := make(map[graph.TargetID]bool)
	for _, tid := range prod.Targets {
		t, ok := p.Graph.Target(tid)
		if !ok {
			return nil, &MissingNode{Kind: "target", ID: int(tid)}
		}
		p.collectClosureObjects(t, seen, &objects)
	}

	var libPaths []string
	libVisited := make(map[graph.ProductID]bool)
	for _, tid := range prod.Targets {
		t, ok := p.Graph.Target(tid)
		if !ok {
			continue
		}
		libPaths = append(libPaths, p.transitiveLibraryPaths(t.Dependencies, libVisited)...)
	}

	desc := &ProductBuildDescription{
		Product:            prod.ID,
		Kind:               prod.Kind,
		BinaryPath:         binaryPath,
		ObjectPaths:        objects,
		LibraryBinaryPaths: libPaths,
		Arguments:          p.productArguments(prod.Kind, binaryPath, objects, libPaths),
	}
	return desc, nil
}

// collectClosureObjects walks t's same-package EdgeToTarget edges,
// accumulating every reachable target's object files exactly once. It does
// not cross package boundaries: a product dependency contributes its own
// binary, not its objects, to the final link step.
func (p *Plan) collectClosureObjects(t *graph.ResolvedTarget, seen map[graph.TargetID]bool, out *[]string) {
	if seen[t.ID] {
		return
	}
	seen[t.ID] = true
	if desc, ok := p.targets[t.ID]; ok {
		*out = append(*out, desc.ObjectPaths...)
	}
	for _, e := range t.Dependencies {
		if e.Kind != graph.EdgeToTarget {
			continue
		}
		dep, ok := p.Graph.Target(e.Target)
		if !ok {
			continue
		}
		p.collectClosureObjects(dep, seen, out)
	}
}

func (p *Plan) productArguments(kind manifest.ProductKind, binaryPath string, objects, libPaths []string) []string {
	switch kind {
	case manifest.ProductLibrary:
		args := []string{"ar", "rcs", binaryPath}
		return append(args, objects...)
	case manifest.ProductExecutable, manifest.ProductTest:
		args := []string{"swiftc", "-emit-executable", "-o", binaryPath}
		args = append(args, objects...)
		for _, l := range libPaths {
			args = append(args, "-L", path.Dir(l), "-l"+strippedLibName(l))
		}
		return args
	default:
		return nil
	}
}

// strippedLibName turns ".../libFoo.a" into "Foo" for a linker "-l" flag.
func strippedLibName(libPath string) string {
	base := path.Base(libPath)
	base = base[:len(base)-len(path.Ext(base))]
	if len(base) > 3 && base[:3] == "lib" {
		return base[3:]
	}
	return base
}

func productBinaryPath(env BuildEnvironment, pkg *graph.ResolvedPackage, modName string, kind manifest.ProductKind) string {
	dir := path.Join(outputRoot(env), string(pkg.Identity))
	switch kind {
	case manifest.ProductLibrary:
		return path.Join(dir, "lib"+modName+".a")
	case manifest.ProductExecutable:
		return path.Join(dir, modName)
	case manifest.ProductTest:
		return path.Join(dir, modName+".xctest")
	default:
		return ""
	}
}

// transitiveLibraryPaths resolves a target's EdgeToProduct edges to the
// binary paths of every library product reachable that way, including the
// library products those products in turn depend on, in dependency-first
// order with no duplicates.
func (p *Plan) transitiveLibraryPaths(edges []graph.TargetEdge, visited map[graph.ProductID]bool) []string {
	if visited == nil {
		visited = make(map[graph.ProductID]bool)
	}
	var out []string
	for _, e := range edges {
		if e.Kind != graph.EdgeToProduct {
			continue
		}
		if visited[e.Product] {
			continue
		}
		visited[e.Product] = true

		prod, ok := p.Graph.Product(e.Product)
		if !ok {
			continue
		}
		if prod.Kind != manifest.ProductLibrary {
			continue
		}
		desc, ok := p.products[e.Product]
		if !ok {
			continue
		}

		for _, tid := range prod.Targets {
			t, ok := p.Graph.Target(tid)
			if !ok {
				continue
			}
			out = append(out, p.transitiveLibraryPaths(t.Dependencies, visited)...)
		}
		out = append(out, desc.BinaryPath)
	}
	return out
}
