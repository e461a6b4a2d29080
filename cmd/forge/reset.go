package main

import (
	"context"
	"flag"
)

const resetShortHelp = `Discard resolved state and build output`
const resetLongHelp = `
Reset removes build output, every non-edited checkout, and the pins file.
Edited dependencies and the repository cache are left alone.
`

type resetCommand struct{}

func (cmd *resetCommand) Name() string              { return "reset" }
func (cmd *resetCommand) Args() string              { return "" }
func (cmd *resetCommand) ShortHelp() string         { return resetShortHelp }
func (cmd *resetCommand) LongHelp() string          { return resetLongHelp }
func (cmd *resetCommand) Hidden() bool              { return false }
func (cmd *resetCommand) Register(fs *flag.FlagSet) {}

func (cmd *resetCommand) Run(ctx *Context, args []string) error {
	c := context.Background()
	w, _, err := ctx.open(c)
	if err != nil {
		return err
	}
	defer w.Close()

	return w.Reset()
}
