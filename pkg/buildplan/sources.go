package buildplan

import (
	"path"
	"strings"

	"github.com/forgepm/forge/pkg/manifest"
)

// swiftExt and clangExts classify a discovered file as a compiled source
// the plan must emit a job for, versus a resource or header that is never
// a Sources entry itself.
const swiftExt = ".swift"

var clangExts = map[string]bool{
	".c":   true,
	".cc":  true,
	".cpp": true,
	".cxx": true,
	".m":   true,
	".mm":  true,
	".s":   true,
	".S":   true,
}

// discoverSources resolves a target's Sources. When the manifest declared
// an explicit list, each entry is joined under root as-is. Otherwise every
// compiled-source file reachable under root is collected in the
// filesystem's walk order, which FileSystem.Walk guarantees is lexical and
// so already deterministic.
func discoverSources(fs manifest.FileSystem, root string, declared []string) ([]string, error) {
	if len(declared) > 0 {
		out := make([]string, len(declared))
		for i, s := range declared {
			out[i] = path.Join(root, s)
		}
		return out, nil
	}

	exists, isDir, err := fs.Stat(root)
	if err != nil {
		return nil, err
	}
	if !exists || !isDir {
		return nil, nil
	}

	var out []string
	err = fs.Walk(root, func(p string, isDir bool) error {
		if isDir {
			return nil
		}
		if isCompiledSource(p) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func isCompiledSource(p string) bool {
	ext := path.Ext(p)
	if strings.EqualFold(ext, swiftExt) {
		return true
	}
	return clangExts[ext]
}

// languageOf decides a target's Language from its resolved source list: any
// Swift file makes the whole target a Swift target, even when Clang-family
// sources sit beside it; otherwise it's a Clang-family target.
func languageOf(sources []string) Language {
	for _, s := range sources {
		if strings.EqualFold(path.Ext(s), swiftExt) {
			return LanguageSwift
		}
	}
	return LanguageClang
}
