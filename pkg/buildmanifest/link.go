package buildmanifest

import (
	"fmt"

	"github.com/forgepm/forge/pkg/buildplan"
	"github.com/forgepm/forge/pkg/graph"
	"github.com/forgepm/forge/pkg/manifest"
)

// productSuffix names the phony-node extension for a product kind, matching
// the "<name>-<config>.{exe|a|dylib|test}" convention; system-module
// products have no binary of their own and return "" (see productCommands).
func productSuffix(kind manifest.ProductKind) string {
	switch kind {
	case manifest.ProductLibrary:
		return "a"
	case manifest.ProductExecutable:
		return "exe"
	case manifest.ProductTest:
		return "test"
	default:
		return ""
	}
}

// productCommands lowers one ProductBuildDescription into its archive or
// link command plus the product-level phony node that collects its single
// binary output. A system-module product contributes no binary and no
// commands; ok is false and callers must not add it to either virtual
// target.
func productCommands(plan *buildplan.Plan, pkg *graph.ResolvedPackage, prod *graph.ResolvedProduct, desc *buildplan.ProductBuildDescription) ([]Command, Node, bool) {
	suffix := productSuffix(prod.Kind)
	if suffix == "" || desc.BinaryPath == "" {
		return nil, Node{}, false
	}

	tool := "link"
	if prod.Kind == manifest.ProductLibrary {
		tool = "archive"
	}

	inputs := fileNodes(desc.ObjectPaths)
	for _, lib := range desc.LibraryBinaryPaths {
		inputs = append(inputs, fileNode(lib))
	}

	linkCmd := Command{
		Name:      fmt.Sprintf("%s.%s.%s", pkg.Identity, prod.Name, tool),
		Tool:      tool,
		Inputs:    inputs,
		Outputs:   []Node{fileNode(desc.BinaryPath)},
		Arguments: desc.Arguments,
	}

	name := fmt.Sprintf("%s-%s.%s", prod.Name, plan.Environment.Configuration, suffix)
	phony := virtualNode(name)
	phonyCmd := Command{
		Name:    name,
		Tool:    "phony",
		Inputs:  []Node{fileNode(desc.BinaryPath)},
		Outputs: []Node{phony},
	}

	return []Command{linkCmd, phonyCmd}, phony, true
}
