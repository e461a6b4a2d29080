package buildmanifest

import (
	"github.com/forgepm/forge/pkg/buildplan"
	"github.com/forgepm/forge/pkg/graph"
	"github.com/forgepm/forge/pkg/manifest"
)

// Generate lowers plan into a full command DAG over g. pinsPath is the
// workspace's lock/resolved file (pass "" when generating outside a
// Workspace, e.g. in tests); it becomes one more PackageStructure input.
//
// Generation is all-or-nothing: any target or product g names that plan
// has no description for is a MissingDescription, aborting the whole call
// rather than emitting a partial manifest.
func Generate(plan *buildplan.Plan, g *graph.Graph, pinsPath string) (*Manifest, error) {
	m := &Manifest{MainTargets: map[string][]Node{"main": nil, "test": nil}}

	for _, pkg := range g.Packages {
		for _, t := range pkg.Targets {
			desc, ok := plan.Target(t.ID)
			if !ok {
				return nil, &MissingDescription{Kind: "target", ID: int(t.ID)}
			}
			cmds, phony, err := targetCommands(plan, pkg, t, desc)
			if err != nil {
				return nil, err
			}
			m.Commands = append(m.Commands, cmds...)
			m.MainTargets["test"] = append(m.MainTargets["test"], phony)
			if !t.IsTest {
				m.MainTargets["main"] = append(m.MainTargets["main"], phony)
			}
		}

		for _, prod := range pkg.Products {
			desc, ok := plan.Product(prod.ID)
			if !ok {
				return nil, &MissingDescription{Kind: "product", ID: int(prod.ID)}
			}
			cmds, phony, ok := productCommands(plan, pkg, prod, desc)
			if !ok {
				continue
			}
			m.Commands = append(m.Commands, cmds...)
			m.MainTargets["test"] = append(m.MainTargets["test"], phony)
			if prod.Kind != manifest.ProductTest {
				m.MainTargets["main"] = append(m.MainTargets["main"], phony)
			}
		}

		if cmd, ok := testDiscoveryCommand(plan, pkg); ok {
			m.Commands = append(m.Commands, cmd)
		}
	}

	m.Commands = append(m.Commands, packageStructureCommand(g, pinsPath))

	return m, nil
}
