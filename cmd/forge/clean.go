package main

import (
	"context"
	"flag"
)

const cleanShortHelp = `Remove build output`
const cleanLongHelp = `
Clean removes everything under the build output directory. Checkouts, edits,
the repository cache, and pins are left untouched.
`

type cleanCommand struct{}

func (cmd *cleanCommand) Name() string              { return "clean" }
func (cmd *cleanCommand) Args() string              { return "" }
func (cmd *cleanCommand) ShortHelp() string         { return cleanShortHelp }
func (cmd *cleanCommand) LongHelp() string          { return cleanLongHelp }
func (cmd *cleanCommand) Hidden() bool              { return false }
func (cmd *cleanCommand) Register(fs *flag.FlagSet) {}

func (cmd *cleanCommand) Run(ctx *Context, args []string) error {
	c := context.Background()
	w, _, err := ctx.open(c)
	if err != nil {
		return err
	}
	defer w.Close()

	return w.Clean()
}
