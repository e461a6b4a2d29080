package ident

import "github.com/pkg/errors"

// Kind discriminates the three reference flavors the resolver and
// repository manager distinguish between.
type Kind int

const (
	// KindRoot marks a reference to one of the manifests the caller asked
	// to resolve/load directly.
	KindRoot Kind = iota
	// KindLocal marks a reference to an on-disk, unversioned package.
	KindLocal
	// KindRemote marks a reference fetched from a source-control location.
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// ErrLocationKindMismatch is returned by NewReference when the kind implies
// a location shape (path vs. URL) the caller didn't provide.
var ErrLocationKindMismatch = errors.New("location does not match reference kind")

// Reference binds an Identity to the kind and location it was derived from.
type Reference struct {
	Identity Identity
	Kind     Kind
	Location string
}

// NewReference derives the Identity from location and validates the
// root/local-is-a-path, remote-is-a-URL invariant.
func NewReference(location string, kind Kind) (Reference, error) {
	id, err := DeriveIdentity(location)
	if err != nil {
		return Reference{}, err
	}

	if err := validateKindLocation(location, kind); err != nil {
		return Reference{}, err
	}

	return Reference{Identity: id, Kind: kind, Location: location}, nil
}

func validateKindLocation(location string, kind Kind) error {
	isURL := isURLLocation(location)
	switch kind {
	case KindRoot, KindLocal:
		if isURL {
			return errors.Wrapf(ErrLocationKindMismatch, "%s reference %q must be a filesystem path", kind, location)
		}
	case KindRemote:
		if !isURL {
			return errors.Wrapf(ErrLocationKindMismatch, "remote reference %q must be a URL", location)
		}
	}
	return nil
}

func isURLLocation(loc string) bool {
	for i := 0; i+2 < len(loc); i++ {
		if loc[i] == ':' && loc[i+1] == '/' && loc[i+2] == '/' {
			return true
		}
	}
	return false
}
