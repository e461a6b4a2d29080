package ident

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// MirrorConfigName is the default mirrors config file name, relative to a
// workspace sandbox.
const MirrorConfigName = "mirrors.toml"

// MirrorConfigEnv is the environment variable that overrides the default
// mirrors config file location.
const MirrorConfigEnv = "MIRROR_CONFIG"

type rawMirrorConfig struct {
	Mirror []rawMirrorEntry `toml:"mirror"`
}

type rawMirrorEntry struct {
	Original string `toml:"original"`
	Mirror   string `toml:"mirror"`
}

// MirrorConfigPath resolves the mirrors config path for sandbox, honoring
// MirrorConfigEnv when it is set.
func MirrorConfigPath(sandbox string) string {
	if p := os.Getenv(MirrorConfigEnv); p != "" {
		return p
	}
	return filepath.Join(sandbox, MirrorConfigName)
}

// LoadMirrors reads the mirrors config file at path into a Mirrors table. A
// missing file yields an empty table, matching a project with none
// configured.
func LoadMirrors(path string) (*Mirrors, error) {
	m := NewMirrors()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading mirrors config %s", path)
	}

	var raw rawMirrorConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "parsing mirrors config %s", path)
	}
	for _, e := range raw.Mirror {
		m.Set(e.Original, e.Mirror)
	}
	return m, nil
}

// SaveMirrors serializes m's current entries to path, atomically enough for
// a config file a human edits between CLI invocations: a plain truncating
// write, since unlike the pins file this isn't read by a concurrently
// running resolver.
func SaveMirrors(path string, m *Mirrors) error {
	raw := rawMirrorConfig{}
	for _, e := range m.Entries() {
		raw.Mirror = append(raw.Mirror, rawMirrorEntry{Original: e.Original, Mirror: e.Mirror})
	}

	data, err := toml.Marshal(raw)
	if err != nil {
		return errors.Wrap(err, "encoding mirrors config")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating mirrors config directory %s", dir)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
