package graph

import (
	radix "github.com/armon/go-radix"
)

// packageNames is a typed wrapper over two radix trees, used to resolve a
// target or product dependency's name to its node within one package
// without the wiring pass doing a linear scan per edge. A plain map would
// do the same lookups; the radix tree is kept so a future prefix-based
// lookup (e.g. "every target under testSupport/") does not require
// swapping the underlying structure.
type packageNames struct {
	targets  *radix.Tree
	products *radix.Tree
}

func newPackageNames() *packageNames {
	return &packageNames{targets: radix.New(), products: radix.New()}
}

func (n *packageNames) insertTarget(name string, t *ResolvedTarget) {
	n.targets.Insert(name, t)
}

func (n *packageNames) insertProduct(name string, p *ResolvedProduct) {
	n.products.Insert(name, p)
}

func (n *packageNames) target(name string) (*ResolvedTarget, bool) {
	v, ok := n.targets.Get(name)
	if !ok {
		return nil, false
	}
	return v.(*ResolvedTarget), true
}

func (n *packageNames) product(name string) (*ResolvedProduct, bool) {
	v, ok := n.products.Get(name)
	if !ok {
		return nil, false
	}
	return v.(*ResolvedProduct), true
}
