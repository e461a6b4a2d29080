package buildmanifest

import (
	"fmt"
	"path"

	"github.com/forgepm/forge/pkg/buildplan"
	"github.com/forgepm/forge/pkg/graph"
)

func fileNodes(paths []string) []Node {
	out := make([]Node, len(paths))
	for i, p := range paths {
		out[i] = fileNode(p)
	}
	return out
}

func modulePhonyName(targetName, configuration string) string {
	return fmt.Sprintf("%s-%s.module", targetName, configuration)
}

// targetCommands lowers one TargetBuildDescription into its compile
// command(s), an optional module-wrap command, an optional resources-bundle
// phony, and the target's own collecting phony node. It returns every
// command it emitted plus the phony output node downstream products and the
// "main"/"test" virtual targets depend on.
func targetCommands(plan *buildplan.Plan, pkg *graph.ResolvedPackage, t *graph.ResolvedTarget, desc *buildplan.TargetBuildDescription) ([]Command, Node, error) {
	config := plan.Environment.Configuration
	var cmds []Command
	var moduleOutputs []Node

	switch desc.Language {
	case buildplan.LanguageSwift:
		outputs := append(fileNodes(desc.ObjectPaths), fileNode(desc.ModuleFilePath))
		args := append(append([]string{}, desc.Arguments...), desc.Sources...)
		args = append(args, "-emit-module-path", desc.ModuleFilePath)
		cmds = append(cmds, Command{
			Name:      fmt.Sprintf("%s.%s.compile", pkg.Identity, t.Name),
			Tool:      "swift.wholeModule",
			Inputs:    fileNodes(desc.Sources),
			Outputs:   outputs,
			Arguments: args,
		})
		moduleOutputs = append(moduleOutputs, outputs...)
	default:
		for i, src := range desc.Sources {
			obj := desc.ObjectPaths[i]
			args := append(append([]string{}, desc.Arguments...), "-c", src, "-o", obj)
			cmds = append(cmds, Command{
				Name:      fmt.Sprintf("%s.%s.compile.%s", pkg.Identity, t.Name, path.Base(src)),
				Tool:      "clang.compile",
				Inputs:    []Node{fileNode(src)},
				Outputs:   []Node{fileNode(obj)},
				Arguments: args,
			})
		}
		moduleOutputs = append(moduleOutputs, fileNodes(desc.ObjectPaths)...)
	}

	if desc.Language == buildplan.LanguageSwift && plan.Environment.DebuggingStrategy == buildplan.DebuggingStrategyModulewrap {
		wrapOut := path.Join(desc.IntermediatesDir, desc.ModuleName+".dwarf.o")
		cmds = append(cmds, Command{
			Name:      fmt.Sprintf("%s.%s.module-wrap", pkg.Identity, t.Name),
			Tool:      "module-wrap",
			Inputs:    []Node{fileNode(desc.ModuleFilePath)},
			Outputs:   []Node{fileNode(wrapOut)},
			Arguments: []string{"swift", "-modulewrap", desc.ModuleFilePath, "-o", wrapOut},
		})
		moduleOutputs = append(moduleOutputs, fileNode(wrapOut))
	}

	if t.BundlePath != "" {
		resCmds, resPhony := resourceCommands(pkg, t, config)
		cmds = append(cmds, resCmds...)
		moduleOutputs = append(moduleOutputs, resPhony)
	}

	for _, lib := range desc.LibraryBinaryPaths {
		dest := path.Join(desc.IntermediatesDir, "..", path.Base(lib))
		cmds = append(cmds, Command{
			Name:      fmt.Sprintf("%s.%s.copy.%s", pkg.Identity, t.Name, path.Base(lib)),
			Tool:      "copy",
			Inputs:    []Node{fileNode(lib)},
			Outputs:   []Node{fileNode(dest)},
			Arguments: []string{"cp", lib, dest},
		})
	}

	name := modulePhonyName(t.Name, config)
	phony := virtualNode(name)
	cmds = append(cmds, Command{
		Name:    name,
		Tool:    "phony",
		Inputs:  moduleOutputs,
		Outputs: []Node{phony},
	})

	return cmds, phony, nil
}

// resourceCommands discovers every file under t.BundlePath (resources plus
// Info.plist, both copied the same way) and emits one copy command per
// file, collected under a "<name>-<config>.module-resources" phony.
func resourceCommands(pkg *graph.ResolvedPackage, t *graph.ResolvedTarget, configuration string) ([]Command, Node) {
	var files []string
	pkg.FS.Walk(t.BundlePath, func(p string, isDir bool) error {
		if !isDir {
			files = append(files, p)
		}
		return nil
	})

	bundleOut := path.Join(".build", "resources", string(pkg.Identity), t.Name)
	var cmds []Command
	var outputs []Node
	for _, f := range files {
		dest := path.Join(bundleOut, path.Base(f))
		cmds = append(cmds, Command{
			Name:      fmt.Sprintf("%s.%s.copy-resource.%s", pkg.Identity, t.Name, path.Base(f)),
			Tool:      "copy",
			Inputs:    []Node{fileNode(f)},
			Outputs:   []Node{fileNode(dest)},
			Arguments: []string{"cp", f, dest},
		})
		outputs = append(outputs, fileNode(dest))
	}

	name := fmt.Sprintf("%s-%s.module-resources", t.Name, configuration)
	phony := virtualNode(name)
	cmds = append(cmds, Command{
		Name:    name,
		Tool:    "phony",
		Inputs:  outputs,
		Outputs: []Node{phony},
	})
	return cmds, phony
}
