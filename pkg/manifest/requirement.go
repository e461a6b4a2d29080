package manifest

import (
	"fmt"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
)

// Requirement is the tagged union of ways a dependency entry can constrain
// the versions/branches/revisions a resolver may bind it to.
type Requirement interface {
	requirement()
	String() string
}

// RangeRequirement constrains to the half-open interval [Low, High).
type RangeRequirement struct {
	Low, High *semver.Version
	// constraint is the Low<=v<High expression, kept alongside the bounds
	// so the resolver can intersect/union it with other range requirements
	// without re-parsing strings on every solver step.
	constraint semver.Constraint
}

func (RangeRequirement) requirement() {}
func (r RangeRequirement) String() string {
	return fmt.Sprintf(">=%s, <%s", r.Low, r.High)
}

// Constraint exposes the underlying semver.Constraint for the resolver.
func (r RangeRequirement) Constraint() semver.Constraint { return r.constraint }

// NewRange builds a RangeRequirement for [low, high).
func NewRange(low, high *semver.Version) (RangeRequirement, error) {
	c, err := semver.NewConstraint(fmt.Sprintf(">=%s, <%s", low, high))
	if err != nil {
		return RangeRequirement{}, errors.Wrapf(err, "invalid range [%s, %s)", low, high)
	}
	return RangeRequirement{Low: low, High: high, constraint: c}, nil
}

// ExactRequirement constrains to a single version.
type ExactRequirement struct {
	Version *semver.Version
}

func (ExactRequirement) requirement()       {}
func (e ExactRequirement) String() string   { return "==" + e.Version.String() }

// BranchRequirement constrains to the tip of a named branch.
type BranchRequirement struct {
	Name string
}

func (BranchRequirement) requirement()      {}
func (b BranchRequirement) String() string  { return "branch " + b.Name }

// RevisionRequirement pins to an exact, immutable revision identifier
// (e.g. a git commit SHA).
type RevisionRequirement struct {
	Revision string
}

func (RevisionRequirement) requirement()     {}
func (r RevisionRequirement) String() string { return "revision " + r.Revision }

// LocalPackageRequirement marks a dependency resolved from an unversioned,
// on-disk package rather than a repository.
type LocalPackageRequirement struct{}

func (LocalPackageRequirement) requirement()     {}
func (LocalPackageRequirement) String() string   { return "local" }
