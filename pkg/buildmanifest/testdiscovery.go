package buildmanifest

import (
	"fmt"
	"path"

	"github.com/forgepm/forge/pkg/buildplan"
	"github.com/forgepm/forge/pkg/graph"
)

// testDiscoveryCommand emits the command that generates a discovery
// main.swift listing every XCTestCase in pkg's test targets, when pkg has
// any. Its inputs are the test targets' object files so it reruns whenever
// a test target is recompiled; its output is main.swift inside a synthetic
// discovery target's sources, conventionally named "<Package>Tests".
func testDiscoveryCommand(plan *buildplan.Plan, pkg *graph.ResolvedPackage) (Command, bool) {
	var inputs []Node
	for _, t := range pkg.Targets {
		if !t.IsTest {
			continue
		}
		desc, ok := plan.Target(t.ID)
		if !ok {
			continue
		}
		inputs = append(inputs, fileNodes(desc.ObjectPaths)...)
	}
	if len(inputs) == 0 {
		return Command{}, false
	}

	discoveryTarget := pkg.Manifest.Name + "Tests"
	output := path.Join("Tests", discoveryTarget, "main.swift")

	return Command{
		Name:      fmt.Sprintf("%s.test-discovery", pkg.Identity),
		Tool:      "test-discovery",
		Inputs:    inputs,
		Outputs:   []Node{fileNode(output)},
		Arguments: []string{"swift-test-discovery", "-o", output},
	}, true
}
