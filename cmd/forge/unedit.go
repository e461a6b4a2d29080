package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/pkg/ident"
)

const uneditShortHelp = `Take a dependency out of edit mode`
const uneditLongHelp = `
Unedit restores a dependency's pre-edit managed state. The edit working
tree itself is left on disk.
`

type uneditCommand struct{}

func (cmd *uneditCommand) Name() string              { return "unedit" }
func (cmd *uneditCommand) Args() string              { return "<package>" }
func (cmd *uneditCommand) ShortHelp() string         { return uneditShortHelp }
func (cmd *uneditCommand) LongHelp() string          { return uneditLongHelp }
func (cmd *uneditCommand) Hidden() bool              { return false }
func (cmd *uneditCommand) Register(fs *flag.FlagSet) {}

func (cmd *uneditCommand) Run(ctx *Context, args []string) error {
	if len(args) != 1 {
		return errors.New("unedit requires exactly one package identity")
	}

	c := context.Background()
	w, _, err := ctx.open(c)
	if err != nil {
		return err
	}
	defer w.Close()

	return w.Unedit(ident.Identity(args[0]))
}
