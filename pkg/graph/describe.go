package graph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/forgepm/forge/pkg/ident"
)

// DependencyFormat selects one of the rendering modes the `show-dependencies`
// command supports.
type DependencyFormat int

const (
	FormatText DependencyFormat = iota
	FormatDot
	FormatJSON
	FormatFlatList
)

// ParseDependencyFormat maps a CLI --format value onto a DependencyFormat.
func ParseDependencyFormat(s string) (DependencyFormat, bool) {
	switch s {
	case "text":
		return FormatText, true
	case "dot":
		return FormatDot, true
	case "json":
		return FormatJSON, true
	case "flatlist":
		return FormatFlatList, true
	default:
		return 0, false
	}
}

type dependencyJSON struct {
	Identity     string   `json:"identity"`
	IsRoot       bool     `json:"isRoot"`
	Dependencies []string `json:"dependencies"`
}

// DescribeDependencies renders g's package dependency graph in the
// requested format. It never mutates g and never touches the network or
// disk; everything it needs is already in memory.
func (g *Graph) DescribeDependencies(format DependencyFormat) (string, error) {
	switch format {
	case FormatText:
		return g.describeText(), nil
	case FormatDot:
		return g.describeDot(), nil
	case FormatJSON:
		return g.describeJSON()
	case FormatFlatList:
		return g.describeFlatList(), nil
	default:
		return "", fmt.Errorf("unknown dependency format %d", format)
	}
}

func (g *Graph) sortedPackages() []*ResolvedPackage {
	out := make([]*ResolvedPackage, len(g.Packages))
	copy(out, g.Packages)
	sort.Slice(out, func(i, j int) bool { return out[i].Identity.Less(out[j].Identity) })
	return out
}

func (g *Graph) identitiesOf(ids []PackageID) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if pkg, ok := g.Package(id); ok {
			names = append(names, string(pkg.Identity))
		}
	}
	sort.Strings(names)
	return names
}

func (g *Graph) describeText() string {
	var b strings.Builder
	for _, pkg := range g.sortedPackages() {
		if !pkg.IsRoot {
			continue
		}
		fmt.Fprintf(&b, "%s\n", pkg.Identity)
		g.writeTextChildren(&b, pkg, "  ", map[PackageID]bool{pkg.ID: true})
	}
	return b.String()
}

func (g *Graph) writeTextChildren(b *strings.Builder, pkg *ResolvedPackage, indent string, seen map[PackageID]bool) {
	for _, name := range g.identitiesOf(pkg.Dependencies) {
		dep, ok := g.PackageByIdentity(ident.Identity(name))
		if !ok {
			continue
		}
		fmt.Fprintf(b, "%s%s\n", indent, name)
		if seen[dep.ID] {
			continue // already expanded elsewhere in this tree; avoid infinite recursion on a cycle
		}
		seen[dep.ID] = true
		g.writeTextChildren(b, dep, indent+"  ", seen)
	}
}

func (g *Graph) describeDot() string {
	var b strings.Builder
	b.WriteString("digraph G {\n")
	for _, pkg := range g.sortedPackages() {
		for _, name := range g.identitiesOf(pkg.Dependencies) {
			fmt.Fprintf(&b, "\t%q -> %q;\n", pkg.Identity, name)
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func (g *Graph) describeJSON() (string, error) {
	var out []dependencyJSON
	for _, pkg := range g.sortedPackages() {
		out = append(out, dependencyJSON{
			Identity:     string(pkg.Identity),
			IsRoot:       pkg.IsRoot,
			Dependencies: g.identitiesOf(pkg.Dependencies),
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (g *Graph) describeFlatList() string {
	var names []string
	for _, pkg := range g.Packages {
		names = append(names, string(pkg.Identity))
	}
	sort.Strings(names)
	return strings.Join(names, "\n")
}
