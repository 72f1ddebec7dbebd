package detect

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lazypower/instinct/internal/obslog"
)

// correctionWindow is how many intervening tool uses may separate a Write
// from the Edit that corrects it.
const correctionWindow = 3

// DetectCorrections finds Write→Edit pairs on the same file within a short
// tool-use window in one session. These are treated as corrections: the
// first write needed follow-up.
func DetectCorrections(window []obslog.Observation) []Candidate {
	type group struct {
		count    int
		sessions map[string]bool
	}
	byExt := make(map[string]*group)

	record := func(path, session string) {
		ext := strings.ToLower(filepath.Ext(path))
		if ext == "" {
			ext = "(no extension)"
		}
		g := byExt[ext]
		if g == nil {
			g = &group{sessions: make(map[string]bool)}
			byExt[ext] = g
		}
		g.count++
		g.sessions[session] = true
	}

	for session, obs := range bySession(window) {
		for i, o := range obs {
			if o.Tool != obslog.ToolEdit || o.Input.FilePath == "" {
				continue
			}
			// Capture-time hint from the observation writer counts directly.
			if o.Input.IsCorrection || (o.Patterns != nil && o.Patterns.Correction != nil) {
				record(o.Input.FilePath, session)
				continue
			}
			for j := i - 1; j >= 0 && i-j <= correctionWindow+1; j-- {
				if obs[j].Tool == obslog.ToolWrite && obs[j].Input.FilePath == o.Input.FilePath {
					record(o.Input.FilePath, session)
					break
				}
			}
		}
	}

	var candidates []Candidate
	for ext, g := range byExt {
		candidates = append(candidates, Candidate{
			Category: CategoryUserCorrection,
			Domain:   DomainCodeStyle,
			Trigger:  fmt.Sprintf("writing a new %s file", ext),
			Action:   fmt.Sprintf("review %s files before writing; recent writes needed immediate follow-up edits", ext),
			Evidence: g.count,
			Sessions: sessionList(g.sessions),
		})
	}
	return candidates
}

// DetectEditPatterns finds refinement signals: replace_all batch edits and
// multi-edit runs (three or more edits to one file in a session).
func DetectEditPatterns(window []obslog.Observation) []Candidate {
	replaceAll := struct {
		count    int
		sessions map[string]bool
	}{sessions: make(map[string]bool)}

	multiEdit := struct {
		count    int
		sessions map[string]bool
	}{sessions: make(map[string]bool)}

	for session, obs := range bySession(window) {
		editsPerFile := make(map[string]int)
		for _, o := range obs {
			if o.Tool != obslog.ToolEdit {
				continue
			}
			if o.Input.ReplaceAll {
				replaceAll.count++
				replaceAll.sessions[session] = true
			}
			if o.Input.FilePath != "" {
				editsPerFile[o.Input.FilePath]++
			}
		}
		for _, n := range editsPerFile {
			if n >= 3 {
				multiEdit.count += n
				multiEdit.sessions[session] = true
			}
		}
	}

	var candidates []Candidate
	if replaceAll.count > 0 {
		candidates = append(candidates, Candidate{
			Category: CategoryEditPattern,
			Domain:   DomainCodeStyle,
			Trigger:  "renaming or updating a symbol used across a file",
			Action:   "use a replace_all batch edit instead of sequential single edits",
			Evidence: replaceAll.count,
			Sessions: sessionList(replaceAll.sessions),
		})
	}
	if multiEdit.count > 0 {
		candidates = append(candidates, Candidate{
			Category: CategoryEditPattern,
			Domain:   DomainCodeStyle,
			Trigger:  "making repeated edits to one file",
			Action:   "plan related edits together; files are being refined in long edit runs",
			Evidence: multiEdit.count,
			Sessions: sessionList(multiEdit.sessions),
		})
	}
	return candidates
}
