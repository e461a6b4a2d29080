package main

import (
	"context"
	"log"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/manifest"
	"github.com/forgepm/forge/pkg/repo"
	"github.com/forgepm/forge/pkg/resolve"
	"github.com/forgepm/forge/pkg/workspace"
)

// Context carries the loggers and working directory every command runs
// against, and the lazily-derived paths and services built from them.
// Collapsed into one type since this CLI has only one project root per
// invocation.
type Context struct {
	Out, Err *log.Logger
	Verbose  bool

	WorkingDir string
}

// sandboxDir is the on-disk sandbox directory for the project rooted at
// WorkingDir.
func (c *Context) sandboxDir() string {
	return filepath.Join(c.WorkingDir, ".forge")
}

// mirrors loads the mirrors table configured for this project's sandbox.
func (c *Context) mirrors() (*ident.Mirrors, error) {
	return ident.LoadMirrors(ident.MirrorConfigPath(c.sandboxDir()))
}

// open wires a Workspace over the current project's sandbox and returns the
// Mirrors table it was built with, so the caller can reuse it for any
// further, mirror-sensitive work (e.g. loading the root manifest).
func (c *Context) open(ctx context.Context) (*workspace.Workspace, *ident.Mirrors, error) {
	mirrors, err := c.mirrors()
	if err != nil {
		return nil, nil, err
	}
	w, err := workspace.Open(ctx, c.sandboxDir(), repo.NewGitProvider(), mirrors)
	if err != nil {
		return nil, nil, err
	}
	return w, mirrors, nil
}

// loadRootManifest parses the project manifest at WorkingDir, returning it
// alongside the FileSystem view the graph loader will reuse for the root
// package's sources.
func (c *Context) loadRootManifest(mirrors *ident.Mirrors) (*manifest.Manifest, manifest.FileSystem, error) {
	provider := repo.NewGitProvider()
	fs, err := provider.OpenCheckout(c.WorkingDir)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening project at %s", c.WorkingDir)
	}

	loader := manifest.NewLoader(mirrors)
	m, err := loader.Load("", c.WorkingDir, "", manifest.KindRootPackage, fs)
	if err != nil {
		return nil, nil, err
	}
	return m, fs, nil
}

// rootIdentity derives the stable identity this CLI uses to name the root
// package within the graph, consistent with how any other location's
// identity is derived.
func (c *Context) rootIdentity() (ident.Identity, error) {
	return ident.DeriveIdentity(c.WorkingDir)
}

// rootConstraints builds the resolver's starting constraints from m's
// declared dependencies.
func rootConstraints(m *manifest.Manifest) ([]resolve.RootConstraint, error) {
	out := make([]resolve.RootConstraint, 0, len(m.Dependencies))
	for _, dep := range m.Dependencies {
		kind := ident.KindRemote
		if _, ok := dep.Requirement.(manifest.LocalPackageRequirement); ok {
			kind = ident.KindLocal
		}
		ref, err := ident.NewReference(dep.Location, kind)
		if err != nil {
			return nil, errors.Wrapf(err, "dependency %q", dep.Location)
		}
		out = append(out, resolve.RootConstraint{
			Ref:           ref,
			Requirement:   dep.Requirement,
			ProductFilter: dep.ProductFilter,
		})
	}
	return out, nil
}
