package detect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lazypower/instinct/internal/obslog"
)

// Workflow shape bounds: sliding windows of 2–5 tool uses per session.
const (
	minShapeLen = 2
	maxShapeLen = 5

	// minShapeSessions is how many distinct sessions must exhibit a shape.
	minShapeSessions = 3
)

// DetectWorkflows abstracts per-session tool sequences into chain shapes
// (e.g. read→edit→bash) and proposes a workflow when the same shape recurs
// in enough sessions. Single-step gaps are tolerated: shapes are also
// generated from windows with one interior element dropped.
func DetectWorkflows(window []obslog.Observation) []Candidate {
	type shapeStat struct {
		count    int
		sessions map[string]bool
	}
	shapes := make(map[string]*shapeStat)

	record := func(shape []string, session string) {
		key := strings.Join(shape, "→")
		s := shapes[key]
		if s == nil {
			s = &shapeStat{sessions: make(map[string]bool)}
			shapes[key] = s
		}
		s.count++
		s.sessions[session] = true
	}

	for session, obs := range bySession(window) {
		tools := make([]string, len(obs))
		for i, o := range obs {
			tools[i] = o.Tool
		}

		// Track which shapes this session already produced so repeated
		// occurrences within one session count evidence but dedupe per index.
		for start := 0; start < len(tools); start++ {
			for size := minShapeLen; size <= maxShapeLen && start+size <= len(tools); size++ {
				chain := tools[start : start+size]
				record(chain, session)

				// Single-step gap: drop one interior element of a window
				// one longer than the target shape.
				if size >= minShapeLen+1 {
					for drop := 1; drop < size-1; drop++ {
						gapped := make([]string, 0, size-1)
						gapped = append(gapped, chain[:drop]...)
						gapped = append(gapped, chain[drop+1:]...)
						record(gapped, session)
					}
				}
			}
		}
	}

	// Qualifying shapes, longest first, suppressing shapes that are
	// contained in a longer qualifying shape.
	type qualified struct {
		shape string
		stat  *shapeStat
	}
	var quals []qualified
	for shape, stat := range shapes {
		if len(stat.sessions) >= minShapeSessions {
			quals = append(quals, qualified{shape, stat})
		}
	}
	sort.Slice(quals, func(i, j int) bool {
		li, lj := strings.Count(quals[i].shape, "→"), strings.Count(quals[j].shape, "→")
		if li != lj {
			return li > lj
		}
		return quals[i].shape < quals[j].shape
	})

	var candidates []Candidate
	var kept []string
	for _, q := range quals {
		contained := false
		for _, longer := range kept {
			if strings.Contains(longer, q.shape) {
				contained = true
				break
			}
		}
		if contained {
			continue
		}
		kept = append(kept, q.shape)

		first := q.shape[:strings.Index(q.shape, "→")]
		candidates = append(candidates, Candidate{
			Category: CategoryWorkflowSequence,
			Domain:   DomainWorkflow,
			Trigger:  fmt.Sprintf("starting a task with a %s step", first),
			Action:   fmt.Sprintf("follow the %s sequence; it recurs across sessions", q.shape),
			Evidence: q.stat.count,
			Sessions: sessionList(q.stat.sessions),
		})
	}
	return candidates
}
