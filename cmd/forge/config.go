package main

import (
	"flag"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/pkg/ident"
)

const configShortHelp = `Get or set a repository mirror`
const configLongHelp = `
config manages the project's mirror table.

  forge config set-mirror --original-url=<url> --mirror-url=<url>
  forge config unset-mirror --original-url=<url>
  forge config get-mirror --original-url=<url>
`

type configCommand struct {
	originalURL string
	mirrorURL   string
}

func (cmd *configCommand) Name() string { return "config" }
func (cmd *configCommand) Args() string {
	return "set-mirror|unset-mirror|get-mirror --original-url=<url> [--mirror-url=<url>]"
}
func (cmd *configCommand) ShortHelp() string { return configShortHelp }
func (cmd *configCommand) LongHelp() string  { return configLongHelp }
func (cmd *configCommand) Hidden() bool      { return false }

func (cmd *configCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.originalURL, "original-url", "", "the upstream location being rewritten")
	fs.StringVar(&cmd.mirrorURL, "mirror-url", "", "the mirror location to rewrite to")
}

func (cmd *configCommand) Run(ctx *Context, args []string) error {
	if len(args) != 1 {
		return errors.New("config requires exactly one of set-mirror, unset-mirror, get-mirror")
	}
	if cmd.originalURL == "" {
		return errors.New("--original-url is required")
	}

	path := ident.MirrorConfigPath(ctx.sandboxDir())
	mirrors, err := ident.LoadMirrors(path)
	if err != nil {
		return err
	}

	switch args[0] {
	case "set-mirror":
		if cmd.mirrorURL == "" {
			return errors.New("--mirror-url is required for set-mirror")
		}
		mirrors.Set(cmd.originalURL, cmd.mirrorURL)
		return ident.SaveMirrors(path, mirrors)

	case "unset-mirror":
		mirrors.Unset(cmd.originalURL)
		return ident.SaveMirrors(path, mirrors)

	case "get-mirror":
		mirror, ok := mirrors.Get(cmd.originalURL)
		if !ok {
			return errors.Errorf("no mirror configured for %s", cmd.originalURL)
		}
		ctx.Out.Println(mirror)
		return nil

	default:
		return errors.Errorf("unknown config subcommand %q", args[0])
	}
}
