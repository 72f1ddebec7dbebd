package detect

import (
	"fmt"

	"github.com/lazypower/instinct/internal/obslog"
	"github.com/lazypower/instinct/internal/structural"
)

// structuralActions maps a change category to the recommendation it implies.
// Ranked above generic corrections because the evidence is structurally
// verified rather than merely positional.
var structuralActions = map[string]string{
	structural.ChangeImportFix:          "verify imports immediately after writing a file; import fixes keep recurring",
	structural.ChangeTypeChange:         "double-check declared return types before writing; they keep being corrected",
	structural.ChangeDecoratorChange:    "review decorator usage before writing; decorators keep being adjusted afterwards",
	structural.ChangeFunctionChange:     "confirm function signatures up front; functions keep being reworked post-write",
	structural.ChangeStructuralAddition: "plan file structure before the first write; structure keeps growing in follow-ups",
	structural.ChangeMixed:              "review the whole file structure after writing; mixed corrections keep recurring",
}

// DetectStructuralCorrections groups Write→Edit structural diffs by change
// category and proposes an instinct when the same category recurs across
// sessions.
func DetectStructuralCorrections(window []obslog.Observation) []Candidate {
	type group struct {
		count    int
		sessions map[string]bool
	}
	byCategory := make(map[string]*group)

	for _, obs := range window {
		if obs.Struct == nil || obs.Struct.Operation != structural.OpModify {
			continue
		}
		category := obs.Struct.ChangeCategory
		if category == "" {
			continue
		}
		g := byCategory[category]
		if g == nil {
			g = &group{sessions: make(map[string]bool)}
			byCategory[category] = g
		}
		g.count++
		g.sessions[obs.SessionID] = true
	}

	var candidates []Candidate
	for category, g := range byCategory {
		action, ok := structuralActions[category]
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{
			Category: CategoryStructuralCorrection,
			Domain:   DomainStructuralCorrection,
			Trigger:  fmt.Sprintf("editing a freshly written file (%s)", category),
			Action:   action,
			Evidence: g.count,
			Sessions: sessionList(g.sessions),
		})
	}
	return candidates
}
