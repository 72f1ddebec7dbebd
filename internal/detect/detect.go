// Package detect implements the pattern detectors: pure functions that scan
// an observation window and propose candidate instincts. Detectors never
// mutate stored state — the confidence engine owns the instinct lifecycle.
package detect

import (
	"sort"

	"github.com/lazypower/instinct/internal/obslog"
)

// Detector categories, in priority order (highest first).
const (
	CategoryErrorFix             = "error-fix"
	CategoryStructuralCorrection = "structural-correction"
	CategoryUserCorrection       = "user-correction"
	CategoryImportConvention     = "import-convention"
	CategorySignatureConvention  = "signature-convention"
	CategoryDecoratorPreference  = "decorator-preference"
	CategoryWorkflowSequence     = "workflow-sequence"
	CategoryToolPreference       = "tool-preference"
	CategoryFilePattern          = "file-pattern"
	CategoryCommandPattern       = "command-pattern"
	CategoryEditPattern          = "edit-pattern"
)

// Instinct domains.
const (
	DomainToolPreference       = "tool-preference"
	DomainCodeStyle            = "code-style"
	DomainWorkflow             = "workflow"
	DomainTesting              = "testing"
	DomainErrorHandling        = "error-handling"
	DomainImportPattern        = "import-pattern"
	DomainSignatureConvention  = "signature-convention"
	DomainDecoratorUsage       = "decorator-usage"
	DomainStructuralCorrection = "structural-correction"
	DomainArchitecture         = "architecture"
)

// categoryPriority resolves competition when multiple categories target the
// same (trigger, action) pair. Lower index wins.
var categoryPriority = []string{
	CategoryErrorFix,
	CategoryStructuralCorrection,
	CategoryUserCorrection,
	CategoryImportConvention,
	CategorySignatureConvention,
	CategoryDecoratorPreference,
	CategoryWorkflowSequence,
	CategoryToolPreference,
	CategoryFilePattern,
	CategoryCommandPattern,
	CategoryEditPattern,
}

// Rank returns the priority rank of a category; unknown categories rank last.
func Rank(category string) int {
	for i, c := range categoryPriority {
		if c == category {
			return i
		}
	}
	return len(categoryPriority)
}

// Candidate is a proposed pattern: evidence for one trigger/action pair.
type Candidate struct {
	Category string
	Domain   string
	Trigger  string
	Action   string
	Evidence int
	Sessions []string
}

// SessionSpread returns the number of distinct contributing sessions.
func (c *Candidate) SessionSpread() int {
	return len(c.Sessions)
}

// minEvidence is the common detection gate: five occurrences, lowered to
// three for the higher-priority structurally-verified categories.
func minEvidence(category string) int {
	switch category {
	case CategoryErrorFix, CategoryStructuralCorrection:
		return 3
	}
	return 5
}

// gate reports whether a candidate clears the common detection gate:
// enough evidence, and recurrence across at least two sessions —
// single-session repetition is noise.
func gate(c Candidate) bool {
	return c.Evidence >= minEvidence(c.Category) && c.SessionSpread() >= 2
}

// Detector scans an observation window and proposes candidates.
// Detectors are pure: same window, same candidates.
type Detector func(window []obslog.Observation) []Candidate

// All returns every detector, in no particular order — ordering is applied
// to the combined candidate list, not the detectors.
func All() []Detector {
	return []Detector{
		DetectErrorFixes,
		DetectStructuralCorrections,
		DetectCorrections,
		DetectConventions,
		DetectWorkflows,
		DetectToolPreferences,
		DetectFilePatterns,
		DetectCommandPatterns,
		DetectEditPatterns,
	}
}

// Run executes every detector over the window, applies the common gate, and
// returns the surviving candidates sorted by category priority then evidence.
// When two candidates target the same (trigger, action) pair, the higher
// priority category wins.
func Run(window []obslog.Observation) []Candidate {
	var all []Candidate
	for _, d := range All() {
		for _, c := range d(window) {
			if gate(c) {
				all = append(all, c)
			}
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		ri, rj := Rank(all[i].Category), Rank(all[j].Category)
		if ri != rj {
			return ri < rj
		}
		if all[i].Evidence != all[j].Evidence {
			return all[i].Evidence > all[j].Evidence
		}
		return all[i].Trigger < all[j].Trigger
	})

	seen := make(map[string]bool, len(all))
	out := all[:0]
	for _, c := range all {
		key := c.Trigger + "\x00" + c.Action
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// sessionList converts a session set into a sorted slice.
func sessionList(set map[string]bool) []string {
	sessions := make([]string, 0, len(set))
	for s := range set {
		if s != "" {
			sessions = append(sessions, s)
		}
	}
	sort.Strings(sessions)
	return sessions
}

// bySession splits a window into per-session ordered sub-windows. Order
// within a session is preserved; cross-session order is not significant.
func bySession(window []obslog.Observation) map[string][]obslog.Observation {
	m := make(map[string][]obslog.Observation)
	for _, obs := range window {
		m[obs.SessionID] = append(m[obs.SessionID], obs)
	}
	return m
}
