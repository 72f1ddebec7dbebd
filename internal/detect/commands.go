package detect

import (
	"fmt"
	"strings"

	"github.com/lazypower/instinct/internal/obslog"
)

// commandRecurrence is the minimum number of times a normalized prefix must
// recur before a command pattern is formed. The common gate still applies
// on top.
const commandRecurrence = 3

// commandPrefix normalizes a Bash observation to program plus subcommand.
func commandPrefix(obs obslog.Observation) string {
	if obs.Struct != nil && obs.Struct.Program != "" {
		if obs.Struct.Subcommand != "" {
			return obs.Struct.Program + " " + obs.Struct.Subcommand
		}
		return obs.Struct.Program
	}
	parts := strings.Fields(obs.Input.CommandPreview)
	switch {
	case len(parts) >= 2 && !strings.HasPrefix(parts[1], "-"):
		return parts[0] + " " + parts[1]
	case len(parts) >= 1:
		return parts[0]
	}
	return ""
}

// DetectCommandPatterns groups Bash invocations by normalized prefix and
// proposes a pattern when the same prefix recurs across sessions in a
// similar preceding-tool context.
func DetectCommandPatterns(window []obslog.Observation) []Candidate {
	type pattern struct {
		count    int
		sessions map[string]bool
		contexts map[string]int // preceding tool name -> count
	}
	prefixes := make(map[string]*pattern)

	for _, obs := range bySession(window) {
		for i, o := range obs {
			if o.Tool != obslog.ToolBash {
				continue
			}
			prefix := commandPrefix(o)
			if prefix == "" {
				continue
			}
			p := prefixes[prefix]
			if p == nil {
				p = &pattern{sessions: make(map[string]bool), contexts: make(map[string]int)}
				prefixes[prefix] = p
			}
			p.count++
			p.sessions[o.SessionID] = true
			if i > 0 {
				p.contexts[obs[i-1].Tool]++
			} else {
				p.contexts["(session start)"]++
			}
		}
	}

	var candidates []Candidate
	for prefix, p := range prefixes {
		if p.count < commandRecurrence || len(p.sessions) < 2 {
			continue
		}
		context := dominantContext(p.contexts, p.count)
		if context == "" {
			continue // no stable preceding context
		}
		candidates = append(candidates, Candidate{
			Category: CategoryCommandPattern,
			Domain:   DomainWorkflow,
			Trigger:  fmt.Sprintf("after a %s step", context),
			Action:   fmt.Sprintf("run `%s`; it is the established command at this point", prefix),
			Evidence: p.count,
			Sessions: sessionList(p.sessions),
		})
	}
	return candidates
}

// dominantContext returns the preceding-tool context covering at least half
// of the occurrences, or "" when none dominates.
func dominantContext(contexts map[string]int, total int) string {
	for context, n := range contexts {
		if n*2 >= total {
			return context
		}
	}
	return ""
}
