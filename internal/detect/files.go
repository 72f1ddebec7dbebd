package detect

import (
	"fmt"

	"github.com/lazypower/instinct/internal/obslog"
)

// adherenceThreshold is the share of file creations one convention must
// exceed before a naming pattern is proposed.
const adherenceThreshold = 0.8

// DetectFilePatterns groups file creations by case convention and by
// structural suffix, proposing an instinct when one convention covers more
// than 80% of observed instances.
func DetectFilePatterns(window []obslog.Observation) []Candidate {
	type conv struct {
		count    int
		sessions map[string]bool
	}
	cases := make(map[string]*conv)
	suffixes := make(map[string]*conv)
	var totalCase, totalSuffix int

	record := func(m map[string]*conv, key, session string) {
		c := m[key]
		if c == nil {
			c = &conv{sessions: make(map[string]bool)}
			m[key] = c
		}
		c.count++
		c.sessions[session] = true
	}

	for _, obs := range window {
		if obs.Tool != obslog.ToolWrite || obs.Input.FilePath == "" {
			continue
		}

		style := ""
		suffix := ""
		if obs.Patterns != nil && obs.Patterns.Naming != nil {
			style = obs.Patterns.Naming.Case
			suffix = obs.Patterns.Naming.SuffixPattern
		} else {
			style = caseStyle(basename(obs.Input.FilePath))
			suffix = suffixPattern(obs.Input.FilePath)
		}

		if style != "" && style != "unknown" {
			record(cases, style, obs.SessionID)
			totalCase++
		}
		if suffix != "" {
			record(suffixes, suffix, obs.SessionID)
			totalSuffix++
		}
	}

	var candidates []Candidate
	for style, c := range cases {
		if float64(c.count)/float64(totalCase) <= adherenceThreshold {
			continue
		}
		candidates = append(candidates, Candidate{
			Category: CategoryFilePattern,
			Domain:   DomainCodeStyle,
			Trigger:  "creating a new file",
			Action:   fmt.Sprintf("name files in %s", style),
			Evidence: c.count,
			Sessions: sessionList(c.sessions),
		})
	}
	for suffix, c := range suffixes {
		if float64(c.count)/float64(totalSuffix) <= adherenceThreshold {
			continue
		}
		candidates = append(candidates, Candidate{
			Category: CategoryFilePattern,
			Domain:   DomainCodeStyle,
			Trigger:  "creating a new file",
			Action:   fmt.Sprintf("use the %s suffix convention", suffix),
			Evidence: c.count,
			Sessions: sessionList(c.sessions),
		})
	}
	return candidates
}

func basename(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
