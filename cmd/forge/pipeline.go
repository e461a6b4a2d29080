package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/pkg/buildmanifest"
	"github.com/forgepm/forge/pkg/buildplan"
	"github.com/forgepm/forge/pkg/diag"
	"github.com/forgepm/forge/pkg/graph"
	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/manifest"
	"github.com/forgepm/forge/pkg/repo"
	"github.com/forgepm/forge/pkg/resolve"
	"github.com/forgepm/forge/pkg/workspace"
)

// loadGraph builds the package graph for the resolved+materialized project:
// one ManifestSource for the root package plus one for every identity
// result named. Materialize must have already run, since every non-root
// source here is read off the checkout path it produced.
func loadGraph(
	w *workspace.Workspace,
	mirrors *ident.Mirrors,
	rootID ident.Identity,
	rootManifest *manifest.Manifest,
	rootFS manifest.FileSystem,
	result *resolve.Result,
	diags *diag.Sink,
) (*graph.Graph, error) {
	provider := repo.NewGitProvider()
	loader := manifest.NewLoader(mirrors)

	roots := []graph.ManifestSource{{Identity: rootID, Manifest: rootManifest, FS: rootFS}}

	externals := make([]graph.ManifestSource, 0, len(result.Decisions))
	for id, dec := range result.Decisions {
		if dec.Kind == resolve.DecisionExcluded {
			continue
		}
		path, ok := w.CheckoutPath(id)
		if !ok {
			return nil, errors.Errorf("no materialized checkout for %s", id)
		}
		fs, err := provider.OpenCheckout(path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening checkout for %s at %s", id, path)
		}
		kind := manifest.KindRemotePackage
		ref := result.References[id]
		if ref.Kind == ident.KindLocal {
			kind = manifest.KindLocalPackage
		}
		m, err := loader.Load("", ref.Location, "", kind, fs)
		if err != nil {
			return nil, errors.Wrapf(err, "loading manifest for %s", id)
		}
		externals = append(externals, graph.ManifestSource{Identity: id, Manifest: m, FS: fs})
	}

	return graph.Load(roots, externals, diags)
}

// generateBuildManifest runs the plan and manifest-generation stages over g
// for the given environment, writing nothing to disk itself: the result is
// data for an external build engine to execute.
func generateBuildManifest(g *graph.Graph, env buildplan.BuildEnvironment, pinsPath string) (*buildmanifest.Manifest, error) {
	plan, err := buildplan.New(g, env)
	if err != nil {
		return nil, errors.Wrap(err, "building build plan")
	}
	return buildmanifest.Generate(plan, g, pinsPath)
}

// resolveAndMaterialize runs the resolver over roots and materializes the
// result's checkouts, returning the result for the caller to load a graph
// from or report on.
func resolveAndMaterialize(ctx context.Context, w *workspace.Workspace, roots []resolve.RootConstraint) (*resolve.Result, error) {
	result, err := w.Resolve(ctx, roots)
	if err != nil {
		return nil, err
	}
	if err := w.Materialize(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}
