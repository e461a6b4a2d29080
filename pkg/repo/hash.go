package repo

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// skippedEntryNames are version-control directories excluded from a tree
// checksum: their contents are an artifact of how the tree was obtained, not
// part of the package content being checksummed.
var skippedEntryNames = map[string]bool{
	".git": true, ".hg": true, ".bzr": true, ".svn": true,
}

// ComputeChecksum returns a deterministic content hash for path, which may
// name a single file or a directory tree. Every discovered node contributes
// its path relative to path (so moving the whole tree doesn't change the
// hash) and, for regular files, its contents; directory entries are visited
// in sorted order so the result doesn't depend on readdir order.
func ComputeChecksum(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrapf(err, "stat %s", path)
	}

	h := sha256.New()
	if !info.IsDir() {
		f, err := os.Open(path)
		if err != nil {
			return "", errors.Wrapf(err, "opening %s", path)
		}
		defer f.Close()
		if _, err := io.Copy(h, f); err != nil {
			return "", errors.Wrapf(err, "reading %s", path)
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	}

	if err := hashDir(h, path, ""); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// hashDir writes every node under dir (named relative to its original root
// via rel) into h, recursing depth-first in sorted order.
func hashDir(h io.Writer, dir, rel string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, "reading %s", dir)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if skippedEntryNames[e.Name()] {
			continue
		}
		childRel := filepath.Join(rel, e.Name())
		io.WriteString(h, childRel+"\n")

		childPath := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if err := hashDir(h, childPath, childRel); err != nil {
				return err
			}
			continue
		}

		f, err := os.Open(childPath)
		if err != nil {
			return errors.Wrapf(err, "opening %s", childPath)
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return errors.Wrapf(err, "reading %s", childPath)
		}
	}
	return nil
}
