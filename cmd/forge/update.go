package main

import (
	"context"
	"flag"

	"github.com/forgepm/forge/pkg/ident"
)

const updateShortHelp = `Update pinned dependencies to their latest allowed versions`
const updateLongHelp = `
Update re-resolves the package graph. With no package arguments every
identity is released from its current pin before resolving, so the solver
is free to pick a newer version wherever one satisfies the manifest's
requirements. With one or more package identities, only those are released;
every other dependency keeps preferring its current pin.

-dry-run runs the resolver and reports what would change without
materializing checkouts or rewriting the pins file.
`

type updateCommand struct {
	dryRun bool
}

func (cmd *updateCommand) Name() string      { return "update" }
func (cmd *updateCommand) Args() string      { return "[--dry-run] [packages...]" }
func (cmd *updateCommand) ShortHelp() string { return updateShortHelp }
func (cmd *updateCommand) LongHelp() string  { return updateLongHelp }
func (cmd *updateCommand) Hidden() bool      { return false }

func (cmd *updateCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.dryRun, "dry-run", false, "report what would change without writing anything")
}

func (cmd *updateCommand) Run(ctx *Context, args []string) error {
	c := context.Background()

	w, mirrors, err := ctx.open(c)
	if err != nil {
		return err
	}
	defer w.Close()

	rootManifest, _, err := ctx.loadRootManifest(mirrors)
	if err != nil {
		return err
	}
	roots, err := rootConstraints(rootManifest)
	if err != nil {
		return err
	}

	release := make(map[ident.Identity]bool, len(args))
	for _, a := range args {
		release[ident.Identity(a)] = true
	}
	releaseAll := len(args) == 0

	store := w.Pins()
	for _, p := range store.All() {
		if releaseAll || release[p.Identity] {
			store.Remove(p.Identity)
		}
	}

	result, err := w.Resolve(c, roots)
	if err != nil {
		return err
	}

	for id, dec := range result.Decisions {
		ctx.Out.Printf("%s -> %s\n", id, dec.Bound)
	}

	if cmd.dryRun {
		return nil
	}

	return w.Materialize(c, result)
}
