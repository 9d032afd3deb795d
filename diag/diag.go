// Package diag holds the diagnostics ledger shared by every conversion stage.
//
// A conversion never fails with an error at the core level; everything that
// could not be translated faithfully is recorded here instead. The ledger is
// strictly append-only: entries are never mutated, removed or reordered, and
// repeated firings of the same rule produce repeated entries on purpose, so
// callers can count affected occurrences.
package diag

import "fmt"

// Severity ranks the impact of a warning. Levels are ordered: Info is
// cosmetic, Warning means a semantic gap, Error means the construct has no
// equivalent in the target dialect.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Kind categorizes a warning. The set is closed; every warning carries
// exactly one kind.
type Kind string

const (
	KindUnsupportedStatement Kind = "unsupported_statement"
	KindUnsupportedFunction  Kind = "unsupported_function"
	KindSyntaxDifference     Kind = "syntax_difference"
	KindPartialSupport       Kind = "partial_support"
	KindManualReview         Kind = "manual_review"
)

// Warning is one non-fatal finding produced during conversion. Immutable
// once appended.
type Warning struct {
	Kind       Kind     `json:"kind"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Ledger accumulates warnings and applied-rule descriptions for a single
// top-level conversion call. The zero value is ready to use. A ledger must
// not be shared between two concurrent conversions; beyond that there is no
// locking discipline because the core never spawns goroutines.
type Ledger struct {
	warnings []Warning
	rules    []string
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// AddWarning appends w. It never fails and never deduplicates.
func (l *Ledger) AddWarning(w Warning) {
	l.warnings = append(l.warnings, w)
}

// Warnf appends a warning built from a format string.
func (l *Ledger) Warnf(kind Kind, sev Severity, suggestion, format string, args ...interface{}) {
	l.AddWarning(Warning{
		Kind:       kind,
		Severity:   sev,
		Message:    fmt.Sprintf(format, args...),
		Suggestion: suggestion,
	})
}

// AddRule appends one human-readable description of a transformation that
// fired. Rules are audit records only; the engine never reads them back.
func (l *Ledger) AddRule(description string) {
	l.rules = append(l.rules, description)
}

// Rulef appends a rule built from a format string.
func (l *Ledger) Rulef(format string, args ...interface{}) {
	l.AddRule(fmt.Sprintf(format, args...))
}

// Warnings returns appended warnings in insertion order. The returned slice
// is the ledger's backing store; callers must treat it as read-only.
func (l *Ledger) Warnings() []Warning {
	return l.warnings
}

// Rules returns applied-rule descriptions in insertion order.
func (l *Ledger) Rules() []string {
	return l.rules
}

// Count reports how many warnings have at least the given severity.
func (l *Ledger) Count(min Severity) int {
	n := 0
	for _, w := range l.warnings {
		if w.Severity >= min {
			n++
		}
	}
	return n
}
