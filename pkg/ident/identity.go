// Package ident implements canonical package identity derivation and the
// identity+kind+location reference type used throughout the resolver,
// repository manager, and graph loader.
package ident

import (
	"strings"

	"github.com/pkg/errors"
)

// Identity is the canonical, hashable, totally-ordered key derived from a
// package location. Two locations that differ only by a trailing ".git" or
// by case collapse to the same Identity.
type Identity string

// Less orders identities by their canonical string, giving callers (cycle
// diagnostics, duplicate-product listings) a stable iteration order.
func (id Identity) Less(other Identity) bool {
	return string(id) < string(other)
}

// ErrInvalidLocation is returned when a location has a scheme this package
// does not recognize (not a filesystem path, and not http(s)/git/ssh).
var ErrInvalidLocation = errors.New("invalid location")

// ErrEmptyIdentity is returned when a location's derived identity string is
// empty, e.g. a path of "/" or a URL with no path component.
var ErrEmptyIdentity = errors.New("location produced an empty identity")

// DeriveIdentity implements a two-branch rule:
//
//  1. filesystem path: identity = lowercased last non-empty path component.
//  2. URL: strip a trailing ".git", then apply the same rule.
func DeriveIdentity(location string) (Identity, error) {
	loc := strings.TrimRight(location, "/")
	if loc == "" {
		return "", errors.Wrap(ErrEmptyIdentity, location)
	}

	if isUnrecognizedScheme(loc) {
		return "", errors.Wrap(ErrInvalidLocation, location)
	}

	// A URL that ends at its host has no path component to take a name from.
	if i := strings.Index(loc, "://"); i >= 0 && !strings.Contains(loc[i+3:], "/") {
		return "", errors.Wrap(ErrEmptyIdentity, location)
	}

	base := loc
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	} else if i := strings.LastIndexByte(base, ':'); i >= 0 {
		// scp-like "host:path" form used by some git remotes.
		base = base[i+1:]
	}

	base = strings.TrimSuffix(base, ".git")
	base = strings.ToLower(base)

	if base == "" {
		return "", errors.Wrap(ErrEmptyIdentity, location)
	}
	return Identity(base), nil
}

func isUnrecognizedScheme(loc string) bool {
	if i := strings.Index(loc, "://"); i >= 0 {
		scheme := strings.ToLower(loc[:i])
		switch scheme {
		case "http", "https", "git", "ssh", "file":
			return false
		default:
			return true
		}
	}
	// Plain filesystem paths (absolute, relative, or scp-like git remotes)
	// are always recognized.
	return false
}
