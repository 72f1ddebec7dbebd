package hooks

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lazypower/instinct/internal/config"
	"github.com/lazypower/instinct/internal/obslog"
	"github.com/lazypower/instinct/internal/store"
)

// maxSuggestions bounds how many instincts one tool call may surface.
const maxSuggestions = 3

// suggestOutput is the PreToolUse response shape. An empty struct means
// no suggestions.
type suggestOutput struct {
	SystemMessage string `json:"systemMessage,omitempty"`
}

// handleSuggest matches auto-approved instincts against the pending tool
// call and surfaces them as a system message. Each instinct is suggested
// at most once per session.
func handleSuggest(cfg config.Config, db *store.DB, olog *obslog.Log, input *HookInput) (*suggestOutput, error) {
	tool := normalizeTool(input.ToolName)
	if tool == "" {
		return &suggestOutput{}, nil
	}

	instincts, err := store.ListInstincts(db, store.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("load instincts: %w", err)
	}

	cache := loadCache(olog.Dir, input.SessionID)
	var matched []*store.Instinct
	for _, in := range instincts {
		if !in.AutoApproved || cache.Suggested[in.ID] {
			continue
		}
		if matchesTool(in, tool, input.ToolInput) {
			matched = append(matched, in)
		}
	}
	if len(matched) == 0 {
		return &suggestOutput{}, nil
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Confidence != matched[j].Confidence {
			return matched[i].Confidence > matched[j].Confidence
		}
		return matched[i].ID < matched[j].ID
	})
	if len(matched) > maxSuggestions {
		matched = matched[:maxSuggestions]
	}

	var b strings.Builder
	b.WriteString("Learned instincts that may apply here:\n")
	for _, in := range matched {
		fmt.Fprintf(&b, "- [%.2f] when %s: %s\n", in.Confidence, in.Trigger, in.Action)
		cache.Suggested[in.ID] = true
	}
	if err := cache.save(olog.Dir); err != nil {
		return nil, fmt.Errorf("save session cache: %w", err)
	}
	return &suggestOutput{SystemMessage: strings.TrimRight(b.String(), "\n")}, nil
}

// matchesTool decides whether an instinct is relevant to the pending call.
// Intentionally loose word matching; suggestions are advisory.
func matchesTool(in *store.Instinct, tool string, rawInput json.RawMessage) bool {
	switch tool {
	case obslog.ToolWrite, obslog.ToolEdit:
		var wi writeInput
		if err := json.Unmarshal(rawInput, &wi); err != nil || wi.FilePath == "" {
			return false
		}
		return matchesWriteEdit(in, tool, wi.FilePath)
	case obslog.ToolBash:
		var bi bashInput
		if err := json.Unmarshal(rawInput, &bi); err != nil || bi.Command == "" {
			return false
		}
		return matchesBash(in, bi.Command)
	}
	return false
}

func matchesWriteEdit(in *store.Instinct, tool, filePath string) bool {
	text := strings.ToLower(in.Trigger + " " + in.Action)
	ext := strings.TrimPrefix(filepath.Ext(filePath), ".")
	if ext != "" && (strings.Contains(text, "."+ext+" ") || strings.HasSuffix(text, "."+ext) || strings.Contains(text, "."+ext+" files")) {
		return true
	}
	if tool == obslog.ToolWrite && strings.Contains(text, "creating a new file") {
		return true
	}
	if tool == obslog.ToolEdit && strings.Contains(text, "editing") {
		return true
	}
	return false
}

func matchesBash(in *store.Instinct, command string) bool {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}
	text := strings.ToLower(in.Trigger + " " + in.Action)
	prog := strings.ToLower(fields[0])
	if strings.Contains(text, prog+" ") || strings.HasSuffix(text, prog) {
		return true
	}
	if len(fields) > 1 && !strings.HasPrefix(fields[1], "-") {
		sub := prog + " " + strings.ToLower(fields[1])
		if strings.Contains(text, sub) {
			return true
		}
	}
	return false
}
