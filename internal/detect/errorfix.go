package detect

import (
	"fmt"
	"strings"

	"github.com/lazypower/instinct/internal/obslog"
)

// fixLookahead is how many observations after a failure may contain the
// corrective action.
const fixLookahead = 3

// DetectErrorFixes pairs failing Bash invocations with a corrective action
// in the next one to three observations of the same session: either the
// same command succeeding, or an edit to a related file. Highest priority
// category.
func DetectErrorFixes(window []obslog.Observation) []Candidate {
	type fix struct {
		count    int
		sessions map[string]bool
		kinds    map[string]int // retry | edit
	}
	byProgram := make(map[string]*fix)

	record := func(program, session, kind string) {
		f := byProgram[program]
		if f == nil {
			f = &fix{sessions: make(map[string]bool), kinds: make(map[string]int)}
			byProgram[program] = f
		}
		f.count++
		f.sessions[session] = true
		f.kinds[kind]++
	}

	for session, obs := range bySession(window) {
		for i, o := range obs {
			// Resolution hints computed at capture time count directly.
			if o.Patterns != nil && o.Patterns.ErrorResolution != nil && o.Patterns.ErrorResolution.Resolved {
				record(o.Patterns.ErrorResolution.CommandPrefix, session, "retry")
				continue
			}

			if o.Tool != obslog.ToolBash || o.Output.Success {
				continue
			}
			program := firstToken(o.Input.CommandPreview)
			if program == "" {
				continue
			}

			for j := i + 1; j <= i+fixLookahead && j < len(obs); j++ {
				next := obs[j]
				if next.Tool == obslog.ToolBash && next.Output.Success &&
					firstToken(next.Input.CommandPreview) == program {
					record(program, session, "retry")
					break
				}
				if (next.Tool == obslog.ToolEdit || next.Tool == obslog.ToolWrite) &&
					relatedFile(o.Input.CommandPreview, next.Input.FilePath) {
					record(program, session, "edit")
					break
				}
			}
		}
	}

	var candidates []Candidate
	for program, f := range byProgram {
		action := fmt.Sprintf("when `%s` fails, fix the affected file and re-run the command", program)
		if f.kinds["retry"] > f.kinds["edit"] {
			action = fmt.Sprintf("when `%s` fails, adjust the invocation and retry; the sequence resolves reliably", program)
		}
		candidates = append(candidates, Candidate{
			Category: CategoryErrorFix,
			Domain:   DomainErrorHandling,
			Trigger:  fmt.Sprintf("a `%s` command exits non-zero", program),
			Action:   action,
			Evidence: f.count,
			Sessions: sessionList(f.sessions),
		})
	}
	return candidates
}

func firstToken(command string) string {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// relatedFile reports whether the edited path plausibly relates to the
// failed command: its basename appears in the command text.
func relatedFile(command, filePath string) bool {
	if filePath == "" {
		return false
	}
	return strings.Contains(command, basename(filePath))
}
