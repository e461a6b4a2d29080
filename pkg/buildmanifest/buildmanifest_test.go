package buildmanifest

import (
	"sort"
	"strings"
	"testing"

	"github.com/forgepm/forge/pkg/buildplan"
	"github.com/forgepm/forge/pkg/diag"
	"github.com/forgepm/forge/pkg/graph"
	"github.com/forgepm/forge/pkg/manifest"
)

type memFS struct{ files []string }

func (f *memFS) ReadFile(p string) ([]byte, error) { return nil, nil }

func (f *memFS) Stat(p string) (bool, bool, error) {
	for _, file := range f.files {
		if file == p {
			return true, false, nil
		}
		if strings.HasPrefix(file, p+"/") {
			return true, true, nil
		}
	}
	return false, false, nil
}

func (f *memFS) Walk(root string, fn func(string, bool) error) error {
	var matched []string
	for _, file := range f.files {
		if file == root || strings.HasPrefix(file, root+"/") {
			matched = append(matched, file)
		}
	}
	sort.Strings(matched)
	for _, file := range matched {
		if err := fn(file, false); err != nil {
			return err
		}
	}
	return nil
}

func (f *memFS) Root() string { return "/nonexistent-test-root" }

func buildGraph(t *testing.T) *graph.Graph {
	t.Helper()

	appFS := &memFS{files: []string{"Sources/App/main.swift"}}
	libFS := &memFS{files: []string{"Sources/Lib/lib.swift", "Sources/CUtil/helper.c"}}

	app := graph.ManifestSource{
		Identity: "app",
		FS:       appFS,
		Manifest: &manifest.Manifest{
			Name:         "App",
			Dependencies: []manifest.Dependency{{Identity: "lib", ProductFilter: manifest.Everything()}},
			Targets: []manifest.Target{{
				Name:         "App",
				Dependencies: []manifest.TargetDependency{{ProductName: "Lib"}},
			}},
			Products: []manifest.Product{{Name: "App", Targets: []string{"App"}, Kind: manifest.ProductExecutable}},
		},
	}
	lib := graph.ManifestSource{
		Identity: "lib",
		FS:       libFS,
		Manifest: &manifest.Manifest{
			Name: "Lib",
			Targets: []manifest.Target{
				{Name: "Lib", Dependencies: []manifest.TargetDependency{{TargetName: "CUtil"}}},
				{Name: "CUtil"},
			},
			Products: []manifest.Product{{Name: "Lib", Targets: []string{"Lib", "CUtil"}, Kind: manifest.ProductLibrary}},
		},
	}

	diags := diag.NewSink()
	g, err := graph.Load([]graph.ManifestSource{app}, []graph.ManifestSource{lib}, diags)
	if err != nil {
		t.Fatalf("graph.Load: %v", err)
	}
	if len(diags.Entries()) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags.Entries())
	}
	return g
}

func TestGenerateEmitsCompileArchiveLinkAndPhonies(t *testing.T) {
	g := buildGraph(t)
	plan, err := buildplan.New(g, buildplan.BuildEnvironment{Platform: "linux", Configuration: "debug"})
	if err != nil {
		t.Fatalf("buildplan.New: %v", err)
	}

	m, err := Generate(plan, g, "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var tools []string
	for _, c := range m.Commands {
		tools = append(tools, c.Tool)
	}

	mustContain := func(tool string) {
		t.Helper()
		for _, got := range tools {
			if got == tool {
				return
			}
		}
		t.Fatalf("expected a %q command, got tools %v", tool, tools)
	}
	mustContain("swift.wholeModule") // Lib has a .swift source -> whole-module
	mustContain("clang.compile")     // Lib also has a .c source
	mustContain("archive")           // Lib product is a library
	mustContain("link")              // App product is an executable
	mustContain("phony")
	mustContain("package-structure")

	if len(m.MainTargets["main"]) == 0 {
		t.Fatal("main virtual target has no members")
	}
	if len(m.MainTargets["test"]) < len(m.MainTargets["main"]) {
		t.Fatal("test virtual target should be a superset of main")
	}
}

func TestGenerateLinkCommandReferencesLibraryArchive(t *testing.T) {
	g := buildGraph(t)
	plan, err := buildplan.New(g, buildplan.BuildEnvironment{Platform: "linux", Configuration: "debug"})
	if err != nil {
		t.Fatalf("buildplan.New: %v", err)
	}
	m, err := Generate(plan, g, "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var linkCmd *Command
	for i := range m.Commands {
		if m.Commands[i].Tool == "link" {
			linkCmd = &m.Commands[i]
		}
	}
	if linkCmd == nil {
		t.Fatal("no link command emitted")
	}
	var sawLib bool
	for _, in := range linkCmd.Inputs {
		if strings.HasSuffix(in.Path, "libLib.a") {
			sawLib = true
		}
	}
	if !sawLib {
		t.Fatalf("link command inputs %v do not reference libLib.a", linkCmd.Inputs)
	}
}

func TestMissingDescriptionIsAnError(t *testing.T) {
	g := buildGraph(t)
	emptyPlan, err := buildplan.New(&graph.Graph{}, buildplan.BuildEnvironment{Platform: "linux", Configuration: "debug"})
	if err != nil {
		t.Fatalf("buildplan.New: %v", err)
	}
	_, err = Generate(emptyPlan, g, "")
	if err == nil {
		t.Fatal("expected a MissingDescription error")
	}
	if _, ok := err.(*MissingDescription); !ok {
		t.Fatalf("err = %T, want *MissingDescription", err)
	}
}
