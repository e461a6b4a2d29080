package container

import (
	"context"
	"sync"

	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/manifest"
)

// LocalContainer wraps an unversioned, on-disk package. Versions is never
// queried; GetUnversionedDependencies loads the manifest once and memoizes
// it.
type LocalContainer struct {
	id     ident.Identity
	fs     manifest.FileSystem
	loader *manifest.Loader

	once sync.Once
	m    *manifest.Manifest
	err  error
}

// NewLocalContainer constructs a Container over an on-disk package tree.
func NewLocalContainer(id ident.Identity, fs manifest.FileSystem, loader *manifest.Loader) *LocalContainer {
	return &LocalContainer{id: id, fs: fs, loader: loader}
}

func (c *LocalContainer) Identity() ident.Identity { return c.id }

func (c *LocalContainer) load() (*manifest.Manifest, error) {
	c.once.Do(func() {
		c.m, c.err = c.loader.Load("", "", "", manifest.KindLocalPackage, c.fs)
	})
	return c.m, c.err
}

// Versions always returns a single synthetic "local" bind, since local
// packages have no version axis; present so Container satisfies the common
// interface without special-casing every caller.
func (c *LocalContainer) Versions(ctx context.Context, filter func(manifest.ToolsVersion) bool) ([]BoundVersion, error) {
	return []BoundVersion{{}}, nil
}

func (c *LocalContainer) ToolsVersion(ctx context.Context, v BoundVersion) (manifest.ToolsVersion, error) {
	m, err := c.load()
	if err != nil {
		return manifest.ToolsVersion{}, err
	}
	return m.ToolsVersion, nil
}

func (c *LocalContainer) Dependencies(ctx context.Context, v BoundVersion, pf manifest.ProductFilter) ([]manifest.Dependency, error) {
	deps, err := c.GetUnversionedDependencies(pf)
	return deps, err
}

// GetUnversionedDependencies is the Local-specific entry point, returning
// the memoized manifest's dependencies filtered by pf.
func (c *LocalContainer) GetUnversionedDependencies(pf manifest.ProductFilter) ([]manifest.Dependency, error) {
	m, err := c.load()
	if err != nil {
		return nil, err
	}
	var out []manifest.Dependency
	for _, d := range m.Dependencies {
		if pf.IsEverything() || d.ProductFilter.IsEverything() || overlaps(pf, d.ProductFilter) {
			out = append(out, d)
		}
	}
	return out, nil
}

func overlaps(a, b manifest.ProductFilter) bool {
	if a.IsEverything() || b.IsEverything() {
		return true
	}
	for _, n := range a.Names() {
		if b.Contains(n) {
			return true
		}
	}
	return false
}

func (c *LocalContainer) IsToolsVersionCompatible(ctx context.Context) (bool, error) {
	tv, err := c.ToolsVersion(ctx, BoundVersion{})
	if err != nil {
		return false, err
	}
	return tv.Compare(manifest.CurrentToolsVersion) <= 0, nil
}
