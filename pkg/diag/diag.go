// Package diag implements an ordered, severity-aware diagnostics sink shared
// by the resolver, graph loader, and workspace. Recording a diagnostic never
// aborts processing; only Error-severity entries (resolution failures,
// duplicate products) make HasErrors report true, while warnings (unused
// dependency, missing optional netrc, unused allow-list) do not.
package diag

import "fmt"

// Severity classifies a Diagnostic. Only Error causes the CLI to exit
// non-zero.
type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Location pins a diagnostic to the package path or URL+reference it
// concerns. Every failure carries a diagnostic location.
type Location struct {
	Package string // manifest path, or empty
	URL     string // repository URL, or empty
}

func (l Location) String() string {
	switch {
	case l.Package != "" && l.URL != "":
		return fmt.Sprintf("%s (%s)", l.Package, l.URL)
	case l.Package != "":
		return l.Package
	case l.URL != "":
		return l.URL
	default:
		return ""
	}
}

// Diagnostic is one emitted error or warning.
type Diagnostic struct {
	Severity Severity
	Kind     string // error-kind tag, e.g. "DuplicateProduct", "CycleDetected"
	Message  string
	Location Location
}

func (d Diagnostic) String() string {
	if d.Location.String() == "" {
		return fmt.Sprintf("%s: %s: %s", d.Severity, d.Kind, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s (%s)", d.Severity, d.Kind, d.Message, d.Location)
}

// Sink accumulates diagnostics in emission order, the ordered set needed for
// cycle-detection paths and duplicate-product/target listings; callers that
// need a stable sort key should sort on Location then Kind before rendering,
// never on map iteration order.
type Sink struct {
	entries []Diagnostic
}

// NewSink returns an empty Sink.
func NewSink() *Sink { return &Sink{} }

// Errorf records an Error-severity diagnostic.
func (s *Sink) Errorf(loc Location, kind, format string, args ...interface{}) {
	s.entries = append(s.entries, Diagnostic{Severity: Error, Kind: kind, Message: fmt.Sprintf(format, args...), Location: loc})
}

// Warnf records a Warning-severity diagnostic.
func (s *Sink) Warnf(loc Location, kind, format string, args ...interface{}) {
	s.entries = append(s.entries, Diagnostic{Severity: Warning, Kind: kind, Message: fmt.Sprintf(format, args...), Location: loc})
}

// Entries returns all recorded diagnostics in emission order.
func (s *Sink) Entries() []Diagnostic {
	out := make([]Diagnostic, len(s.entries))
	copy(out, s.entries)
	return out
}

// HasErrors reports whether any Error-severity diagnostic was recorded; the
// CLI uses this to pick its exit code.
func (s *Sink) HasErrors() bool {
	for _, e := range s.entries {
		if e.Severity == Error {
			return true
		}
	}
	return false
}
