package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/pkg/diag"
	"github.com/forgepm/forge/pkg/graph"
)

const showDependenciesShortHelp = `Print the resolved package dependency graph`
const showDependenciesLongHelp = `
show-dependencies resolves and materializes the project (which also rewrites
the pins file) and prints the resulting package graph in the requested format:
text (indented tree), dot (Graphviz), json, or flatlist (one identity per
line).
`

type showDependenciesCommand struct {
	format string
}

func (cmd *showDependenciesCommand) Name() string      { return "show-dependencies" }
func (cmd *showDependenciesCommand) Args() string      { return "[--format text|dot|json|flatlist]" }
func (cmd *showDependenciesCommand) ShortHelp() string { return showDependenciesShortHelp }
func (cmd *showDependenciesCommand) LongHelp() string  { return showDependenciesLongHelp }
func (cmd *showDependenciesCommand) Hidden() bool      { return false }

func (cmd *showDependenciesCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.format, "format", "text", "one of text, dot, json, flatlist")
}

func (cmd *showDependenciesCommand) Run(ctx *Context, args []string) error {
	format, ok := graph.ParseDependencyFormat(cmd.format)
	if !ok {
		return errors.Errorf("unknown --format %q", cmd.format)
	}

	c := context.Background()
	w, mirrors, err := ctx.open(c)
	if err != nil {
		return err
	}
	defer w.Close()

	rootManifest, rootFS, err := ctx.loadRootManifest(mirrors)
	if err != nil {
		return err
	}
	rootID, err := ctx.rootIdentity()
	if err != nil {
		return err
	}
	roots, err := rootConstraints(rootManifest)
	if err != nil {
		return err
	}

	result, err := w.Resolve(c, roots)
	if err != nil {
		return err
	}
	if err := w.Materialize(c, result); err != nil {
		return err
	}

	diags := diag.NewSink()
	g, err := loadGraph(w, mirrors, rootID, rootManifest, rootFS, result, diags)
	if err != nil {
		return err
	}
	for _, d := range diags.Entries() {
		ctx.Err.Println(d)
	}

	out, err := g.DescribeDependencies(format)
	if err != nil {
		return err
	}
	ctx.Out.Println(out)

	if diags.HasErrors() {
		return errors.New("package graph has errors")
	}
	return nil
}
