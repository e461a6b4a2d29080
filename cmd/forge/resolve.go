package main

import (
	"context"
	"flag"
)

const resolveShortHelp = `Resolve and materialize the package graph`
const resolveLongHelp = `
Resolve runs the dependency resolver over the project's declared
dependencies, preferring the current pins file where possible, then
materializes a working tree for every dependency it decided on and
rewrites the pins file to match.
`

type resolveCommand struct{}

func (cmd *resolveCommand) Name() string      { return "resolve" }
func (cmd *resolveCommand) Args() string      { return "" }
func (cmd *resolveCommand) ShortHelp() string { return resolveShortHelp }
func (cmd *resolveCommand) LongHelp() string  { return resolveLongHelp }
func (cmd *resolveCommand) Hidden() bool      { return false }
func (cmd *resolveCommand) Register(fs *flag.FlagSet) {}

func (cmd *resolveCommand) Run(ctx *Context, args []string) error {
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
	roots, err := rootConstraints(rootManifest)
	if err != nil {
		return err
	}

	result, err := resolveAndMaterialize(c, w, roots)
	if err != nil {
		return err
	}

	for _, diag := range w.Diagnostics().Entries() {
		ctx.Err.Println(diag)
	}

	ctx.Out.Printf("resolved %d dependencies\n", len(result.Decisions))
	return nil
}
