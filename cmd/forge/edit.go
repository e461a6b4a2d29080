package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/workspace"
)

const editShortHelp = `Put a dependency into edit mode`
const editLongHelp = `
Edit transitions a resolved dependency into an editable working tree, either
adopting an existing one at --path or cloning one from the dependency's
repository. A fresh clone stays on the repository's default branch;
--branch and --revision are accepted but not applied to it.
`

type editCommand struct {
	branch   string
	revision string
	path     string
}

func (cmd *editCommand) Name() string      { return "edit" }
func (cmd *editCommand) Args() string      { return "<package> [--branch=name|--revision=sha|--path=dir]" }
func (cmd *editCommand) ShortHelp() string { return editShortHelp }
func (cmd *editCommand) LongHelp() string  { return editLongHelp }
func (cmd *editCommand) Hidden() bool      { return false }

func (cmd *editCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.branch, "branch", "", "branch name (accepted; the clone stays on the default branch)")
	fs.StringVar(&cmd.revision, "revision", "", "revision (accepted; the clone stays on the default branch)")
	fs.StringVar(&cmd.path, "path", "", "adopt this existing working tree instead of cloning one")
}

func (cmd *editCommand) Run(ctx *Context, args []string) error {
	if len(args) != 1 {
		return errors.New("edit requires exactly one package identity")
	}

	c := context.Background()
	w, _, err := ctx.open(c)
	if err != nil {
		return err
	}
	defer w.Close()

	return w.Edit(c, ident.Identity(args[0]), workspace.EditOptions{
		Branch:   cmd.branch,
		Revision: cmd.revision,
		Path:     cmd.path,
	})
}
