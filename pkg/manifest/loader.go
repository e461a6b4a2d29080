package manifest

import (
	"fmt"

	"github.com/Masterminds/semver"
	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/forgepm/forge/pkg/ident"
)

// CurrentToolsVersion is the highest ToolsVersion this loader accepts.
var CurrentToolsVersion = ToolsVersion{Major: 5, Minor: 6, Patch: 0}

// ManifestFileName is the conventional manifest document name looked up
// under a package's root when Load is called with an empty explicit path.
const ManifestFileName = "package.toml"

// rawManifest mirrors the TOML schema. Field names map onto lower-case TOML
// keys via go-toml's default reflection rules, a struct-tag-driven approach
// that replaces a hand-rolled TomlTree query mapper with go-toml's own
// Unmarshal walk.
type rawManifest struct {
	Name         string            `toml:"name"`
	ToolsVersion string            `toml:"toolsVersion"`
	URL          string            `toml:"url"`
	Platforms    []string          `toml:"platforms"`
	Dependencies []rawDependency   `toml:"dependencies"`
	Targets      []rawTarget       `toml:"targets"`
	Products     []rawProduct      `toml:"products"`
	UnsafeAllow  bool              `toml:"unsafeFlagsAllowed"`
}

type rawDependency struct {
	Location string   `toml:"location"`
	Range    string   `toml:"range,omitempty"`
	Exact    string   `toml:"exact,omitempty"`
	Branch   string   `toml:"branch,omitempty"`
	Revision string   `toml:"revision,omitempty"`
	Local    bool     `toml:"local,omitempty"`
	Products []string `toml:"products,omitempty"` // absent/empty means Everything
}

type rawTargetDependency struct {
	Target  string   `toml:"target,omitempty"`
	Product string   `toml:"product,omitempty"`
	Package string   `toml:"package,omitempty"`
	Conditions []string `toml:"conditions,omitempty"`
}

type rawTarget struct {
	Name         string                `toml:"name"`
	Path         string                `toml:"path,omitempty"`
	Sources      []string              `toml:"sources,omitempty"`
	Dependencies []rawTargetDependency `toml:"dependencies,omitempty"`
	IsTest       bool                  `toml:"test,omitempty"`
	UnsafeFlags  []string              `toml:"unsafeFlags,omitempty"`
	BundlePath   string                `toml:"bundlePath,omitempty"`
}

type rawProduct struct {
	Name    string   `toml:"name"`
	Targets []string `toml:"targets"`
	Kind    string   `toml:"kind,omitempty"` // "library" (default), "executable", "system", "test"
}

// Loader parses manifest documents into typed Manifests.
type Loader struct {
	mirrors *ident.Mirrors
}

// NewLoader constructs a Loader. mirrors may be nil, in which case
// locations are used verbatim (callers are still responsible for applying
// mirrors at every other entry point that accepts a user-supplied location).
func NewLoader(mirrors *ident.Mirrors) *Loader {
	return &Loader{mirrors: mirrors}
}

// PackageKind names the loading context (root, local or remote package).
// Load accepts it but does not read it: parsing is the same for every kind,
// and no kind requires a declared URL.
type PackageKind int

const (
	KindRootPackage PackageKind = iota
	KindLocalPackage
	KindRemotePackage
)

// Load parses the manifest at fsPath within fs, with the declared package
// root import location baseURL. version and kind are accepted but not read;
// pass "" for version when unknown.
func (l *Loader) Load(fsPath, baseURL, version string, kind PackageKind, fs FileSystem) (*Manifest, error) {
	if fsPath == "" {
		fsPath = ManifestFileName
	}

	data, err := fs.ReadFile(fsPath)
	if err != nil {
		return nil, &ParseError{Path: fsPath, Err: err}
	}

	var raw rawManifest
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Path: fsPath, Err: err}
	}

	tv, err := parseToolsVersion(raw.ToolsVersion)
	if err != nil {
		return nil, &InvalidManifestSchema{Path: fsPath, Reason: err.Error()}
	}
	if tv.Compare(CurrentToolsVersion) > 0 {
		return nil, &ToolsVersionIncompatible{Required: tv, Current: CurrentToolsVersion}
	}

	m := &Manifest{
		Name:            raw.Name,
		ToolsVersion:    tv,
		URL:             firstNonEmpty(raw.URL, baseURL),
		Platforms:       raw.Platforms,
		UnsafeAllowList: raw.UnsafeAllow,
	}

	for _, rd := range raw.Dependencies {
		dep, err := l.toDependency(fsPath, rd)
		if err != nil {
			return nil, err
		}
		m.Dependencies = append(m.Dependencies, dep)
	}

	for _, rt := range raw.Targets {
		m.Targets = append(m.Targets, toTarget(rt))
	}

	for _, rp := range raw.Products {
		m.Products = append(m.Products, toProduct(rp))
	}

	return m, nil
}

func (l *Loader) toDependency(manifestPath string, rd rawDependency) (Dependency, error) {
	loc := rd.Location
	if l.mirrors != nil {
		loc = l.mirrors.Rewrite(loc)
	}

	id, err := ident.DeriveIdentity(loc)
	if err != nil {
		return Dependency{}, &InvalidManifestSchema{Path: manifestPath, Reason: err.Error()}
	}

	req, err := toRequirement(rd)
	if err != nil {
		return Dependency{}, &InvalidManifestSchema{Path: manifestPath, Reason: err.Error()}
	}

	pf := Everything()
	if len(rd.Products) > 0 {
		pf = Specific(rd.Products...)
	}

	return Dependency{
		Identity:      id,
		Location:      loc,
		Requirement:   req,
		ProductFilter: pf,
	}, nil
}

func toRequirement(rd rawDependency) (Requirement, error) {
	set := 0
	for _, v := range []string{rd.Range, rd.Exact, rd.Branch, rd.Revision} {
		if v != "" {
			set++
		}
	}
	if rd.Local {
		set++
	}
	if set > 1 {
		return nil, errors.Errorf("dependency %q declares more than one requirement kind", rd.Location)
	}

	switch {
	case rd.Local:
		return LocalPackageRequirement{}, nil
	case rd.Exact != "":
		v, err := semver.NewVersion(rd.Exact)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid exact version %q", rd.Exact)
		}
		return ExactRequirement{Version: v}, nil
	case rd.Branch != "":
		return BranchRequirement{Name: rd.Branch}, nil
	case rd.Revision != "":
		return RevisionRequirement{Revision: rd.Revision}, nil
	case rd.Range != "":
		low, high, err := parseRange(rd.Range)
		if err != nil {
			return nil, err
		}
		return NewRange(low, high)
	default:
		return nil, errors.Errorf("dependency %q declares no requirement", rd.Location)
	}
}

// parseRange accepts "a..<b" (explicit half-open range syntax).
func parseRange(s string) (low, high *semver.Version, err error) {
	const sep = "..<"
	idx := indexOf(s, sep)
	if idx < 0 {
		return nil, nil, errors.Errorf("invalid range requirement %q, expected \"a..<b\"", s)
	}
	low, err = semver.NewVersion(s[:idx])
	if err != nil {
		return nil, nil, errors.Wrapf(err, "invalid range lower bound in %q", s)
	}
	high, err = semver.NewVersion(s[idx+len(sep):])
	if err != nil {
		return nil, nil, errors.Wrapf(err, "invalid range upper bound in %q", s)
	}
	return low, high, nil
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func toTarget(rt rawTarget) Target {
	t := Target{
		Name:        rt.Name,
		Path:        rt.Path,
		Sources:     rt.Sources,
		IsTest:      rt.IsTest,
		UnsafeFlags: rt.UnsafeFlags,
		BundlePath:  rt.BundlePath,
	}
	for _, rtd := range rt.Dependencies {
		t.Dependencies = append(t.Dependencies, TargetDependency{
			TargetName:  rtd.Target,
			ProductName: rtd.Product,
			PackageName: rtd.Package,
			Conditions:  rtd.Conditions,
		})
	}
	return t
}

func toProduct(rp rawProduct) Product {
	p := Product{Name: rp.Name, Targets: rp.Targets}
	switch rp.Kind {
	case "executable":
		p.Kind = ProductExecutable
	case "system":
		p.Kind = ProductSystemModule
	case "test":
		p.Kind = ProductTest
	default:
		p.Kind = ProductLibrary
	}
	return p
}

func parseToolsVersion(s string) (ToolsVersion, error) {
	if s == "" {
		return ToolsVersion{}, nil
	}
	var maj, min, pat int
	n, err := fmt.Sscanf(s, "%d.%d.%d", &maj, &min, &pat)
	if err != nil && n < 2 {
		return ToolsVersion{}, errors.Wrapf(err, "invalid tools-version %q", s)
	}
	return ToolsVersion{Major: maj, Minor: min, Patch: pat}, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
