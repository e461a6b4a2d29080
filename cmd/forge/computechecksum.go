package main

import (
	"flag"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/pkg/repo"
)

const computeChecksumShortHelp = `Print a content checksum for a file or directory`
const computeChecksumLongHelp = `
compute-checksum hashes the given path (a single file, or a directory tree)
and prints the resulting hex-encoded SHA-256 digest.
`

type computeChecksumCommand struct{}

func (cmd *computeChecksumCommand) Name() string              { return "compute-checksum" }
func (cmd *computeChecksumCommand) Args() string              { return "<path>" }
func (cmd *computeChecksumCommand) ShortHelp() string         { return computeChecksumShortHelp }
func (cmd *computeChecksumCommand) LongHelp() string          { return computeChecksumLongHelp }
func (cmd *computeChecksumCommand) Hidden() bool              { return false }
func (cmd *computeChecksumCommand) Register(fs *flag.FlagSet) {}

func (cmd *computeChecksumCommand) Run(ctx *Context, args []string) error {
	if len(args) != 1 {
		return errors.New("compute-checksum requires exactly one path")
	}

	sum, err := repo.ComputeChecksum(args[0])
	if err != nil {
		return err
	}
	ctx.Out.Println(sum)
	return nil
}
