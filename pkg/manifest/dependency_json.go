package manifest

import (
	"encoding/json"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"

	"github.com/forgepm/forge/pkg/ident"
)

// jsonDependency is Dependency's wire form, needed because Requirement is
// an interface and encoding/json can't round-trip one without a discriminant
// tag (used by the container package's bolt-backed dependency cache).
type jsonDependency struct {
	Identity      ident.Identity `json:"identity"`
	Location      string         `json:"location"`
	Kind          string         `json:"kind"`
	Low           string         `json:"low,omitempty"`
	High          string         `json:"high,omitempty"`
	Exact         string         `json:"exact,omitempty"`
	Branch        string         `json:"branch,omitempty"`
	Revision      string         `json:"revision,omitempty"`
	Everything    bool           `json:"everything"`
	ProductNames  []string       `json:"productNames,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (d Dependency) MarshalJSON() ([]byte, error) {
	jd := jsonDependency{
		Identity:     d.Identity,
		Location:     d.Location,
		Everything:   d.ProductFilter.IsEverything(),
		ProductNames: d.ProductFilter.Names(),
	}
	switch r := d.Requirement.(type) {
	case RangeRequirement:
		jd.Kind = "range"
		jd.Low, jd.High = r.Low.String(), r.High.String()
	case ExactRequirement:
		jd.Kind = "exact"
		jd.Exact = r.Version.String()
	case BranchRequirement:
		jd.Kind = "branch"
		jd.Branch = r.Name
	case RevisionRequirement:
		jd.Kind = "revision"
		jd.Revision = r.Revision
	case LocalPackageRequirement:
		jd.Kind = "local"
	default:
		return nil, errors.Errorf("unknown requirement kind %T", d.Requirement)
	}
	return json.Marshal(jd)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Dependency) UnmarshalJSON(data []byte) error {
	var jd jsonDependency
	if err := json.Unmarshal(data, &jd); err != nil {
		return err
	}

	d.Identity = jd.Identity
	d.Location = jd.Location
	if jd.Everything {
		d.ProductFilter = Everything()
	} else {
		d.ProductFilter = Specific(jd.ProductNames...)
	}

	switch jd.Kind {
	case "range":
		low, err := semver.NewVersion(jd.Low)
		if err != nil {
			return errors.Wrapf(err, "decoding range low bound %q", jd.Low)
		}
		high, err := semver.NewVersion(jd.High)
		if err != nil {
			return errors.Wrapf(err, "decoding range high bound %q", jd.High)
		}
		req, err := NewRange(low, high)
		if err != nil {
			return err
		}
		d.Requirement = req
	case "exact":
		v, err := semver.NewVersion(jd.Exact)
		if err != nil {
			return errors.Wrapf(err, "decoding exact version %q", jd.Exact)
		}
		d.Requirement = ExactRequirement{Version: v}
	case "branch":
		d.Requirement = BranchRequirement{Name: jd.Branch}
	case "revision":
		d.Requirement = RevisionRequirement{Revision: jd.Revision}
	case "local":
		d.Requirement = LocalPackageRequirement{}
	default:
		return errors.Errorf("unknown requirement kind %q", jd.Kind)
	}
	return nil
}
