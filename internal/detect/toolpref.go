package detect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lazypower/instinct/internal/obslog"
)

// shareThreshold is the usage share one tool must exceed within a task
// category before a preference is proposed.
const shareThreshold = 0.7

var (
	searchCmdRe   = regexp.MustCompile(`^\s*(rg|grep|ag)\b`)
	redirectCmdRe = regexp.MustCompile(`^\s*(echo|cat)\b.*>`)
)

// taskChoice classifies an observation into a (task category, tool choice)
// pair, or returns ok=false for observations that express no preference.
func taskChoice(obs obslog.Observation) (category, choice string, ok bool) {
	if hint := obs.Patterns; hint != nil && hint.ToolPreference != nil {
		return hint.ToolPreference.Category, hint.ToolPreference.Chose, true
	}

	switch obs.Tool {
	case obslog.ToolBash:
		cmd := obs.Input.CommandPreview
		if m := searchCmdRe.FindStringSubmatch(cmd); m != nil {
			return "content-search", m[1], true
		}
		if redirectCmdRe.MatchString(cmd) {
			return "file-write", "bash-redirect", true
		}
	case obslog.ToolWrite:
		return "file-write", "write-tool", true
	}
	return "", "", false
}

// DetectToolPreferences groups observations by task category and proposes a
// preference when one tool choice dominates the category's usage.
func DetectToolPreferences(window []obslog.Observation) []Candidate {
	type usage struct {
		count    int
		sessions map[string]bool
	}
	categories := make(map[string]map[string]*usage)
	totals := make(map[string]int)

	for _, obs := range window {
		category, choice, ok := taskChoice(obs)
		if !ok {
			continue
		}
		if categories[category] == nil {
			categories[category] = make(map[string]*usage)
		}
		u := categories[category][choice]
		if u == nil {
			u = &usage{sessions: make(map[string]bool)}
			categories[category][choice] = u
		}
		u.count++
		u.sessions[obs.SessionID] = true
		totals[category]++
	}

	var candidates []Candidate
	for category, choices := range categories {
		total := totals[category]
		if total == 0 {
			continue
		}
		for choice, u := range choices {
			share := float64(u.count) / float64(total)
			if share <= shareThreshold {
				continue
			}
			candidates = append(candidates, Candidate{
				Category: CategoryToolPreference,
				Domain:   DomainToolPreference,
				Trigger:  fmt.Sprintf("performing a %s task", category),
				Action:   fmt.Sprintf("prefer %s for %s", choice, category),
				Evidence: u.count,
				Sessions: sessionList(u.sessions),
			})
		}
	}
	return candidates
}

// caseStyle classifies a file basename into a naming convention.
func caseStyle(name string) string {
	base := name
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}
	switch {
	case base == "":
		return "unknown"
	case strings.Contains(base, "-"):
		return "kebab-case"
	case strings.Contains(base, "_"):
		return "snake_case"
	case isUpper(base[0]) && hasUpper(base[1:]):
		return "PascalCase"
	case isLower(base[0]) && hasUpper(base[1:]):
		return "camelCase"
	}
	return "unknown"
}

func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }
func isLower(b byte) bool { return b >= 'a' && b <= 'z' }

func hasUpper(s string) bool {
	for i := 0; i < len(s); i++ {
		if isUpper(s[i]) {
			return true
		}
	}
	return false
}

// suffixPattern extracts a compound suffix like ".test.ts" or ".module.ts",
// falling back to the plain extension.
func suffixPattern(path string) string {
	base := path
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	parts := strings.Split(base, ".")
	if len(parts) >= 3 {
		return "." + strings.Join(parts[len(parts)-2:], ".")
	}
	if len(parts) == 2 {
		return "." + parts[1]
	}
	return ""
}
