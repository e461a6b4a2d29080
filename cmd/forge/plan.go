package main

import (
	"context"
	"flag"
	"runtime"

	"github.com/forgepm/forge/pkg/buildplan"
	"github.com/forgepm/forge/pkg/diag"
)

const planShortHelp = `Emit the build command DAG for the resolved project`
const planLongHelp = `
plan resolves and materializes the project, loads the package graph, and
prints the number of commands in the generated build manifest. It exists
for diagnosing the plan/manifest stages directly; the manifest itself is
meant for an external build engine, not for a human to read off stdout.
`

type planCommand struct {
	configuration string
}

func (cmd *planCommand) Name() string      { return "plan" }
func (cmd *planCommand) Args() string      { return "[--configuration debug|release]" }
func (cmd *planCommand) ShortHelp() string { return planShortHelp }
func (cmd *planCommand) LongHelp() string  { return planLongHelp }
func (cmd *planCommand) Hidden() bool      { return true }

func (cmd *planCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.configuration, "configuration", "debug", "debug or release")
}

// hostPlatform maps the running GOOS onto the platform name buildplan
// expects, which in turn governs the debugging-strategy derivation.
func hostPlatform() string {
	if runtime.GOOS == "darwin" {
		return "macosx"
	}
	return runtime.GOOS
}

func (cmd *planCommand) Run(ctx *Context, args []string) error {
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

	result, err := resolveAndMaterialize(c, w, roots)
	if err != nil {
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

	env := buildplan.BuildEnvironment{Platform: hostPlatform(), Configuration: cmd.configuration}
	m, err := generateBuildManifest(g, env, w.PinsPath())
	if err != nil {
		return err
	}

	ctx.Out.Printf("%d commands, %d main targets, %d test targets\n",
		len(m.Commands), len(m.MainTargets["main"]), len(m.MainTargets["test"]))
	return nil
}
