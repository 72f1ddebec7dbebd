package hooks

import (
	"encoding/json"
	"strings"

	"github.com/lazypower/instinct/internal/obslog"
)

// HookInput represents the JSON that Claude Code sends on stdin to hook handlers.
// All fields are optional — different events populate different subsets.
type HookInput struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	CWD            string `json:"cwd"`
	HookEventName  string `json:"hook_event_name"`

	// PreToolUse / PostToolUse
	ToolName     string          `json:"tool_name,omitempty"`
	ToolUseID    string          `json:"tool_use_id,omitempty"`
	ToolInput    json.RawMessage `json:"tool_input,omitempty"`
	ToolResponse json.RawMessage `json:"tool_response,omitempty"`
}

// Per-tool input payloads.
type writeInput struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

type editInput struct {
	FilePath   string `json:"file_path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all"`
}

type bashInput struct {
	Command string `json:"command"`
}

type skillInput struct {
	Skill string `json:"skill"`
	Name  string `json:"name"`
}

type toolResponse struct {
	Success  *bool  `json:"success,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
	Error    string `json:"error,omitempty"`
	IsError  bool   `json:"is_error,omitempty"`
}

// skipTools are meta-tools that generate noise, not useful observations.
var skipTools = map[string]bool{
	"TodoRead":   true,
	"TodoWrite":  true,
	"Thinking":   true,
	"TaskList":   true,
	"TaskCreate": true,
	"TaskGet":    true,
	"TaskUpdate": true,
}

// ShouldSkipTool returns true if this tool should not be recorded as an observation.
func (h *HookInput) ShouldSkipTool() bool {
	return skipTools[h.ToolName]
}

// normalizeTool maps the host's tool names onto the observation enum.
// Unknown tools map to "".
func normalizeTool(name string) string {
	switch strings.ToLower(name) {
	case "read":
		return obslog.ToolRead
	case "write":
		return obslog.ToolWrite
	case "edit", "multiedit":
		return obslog.ToolEdit
	case "bash":
		return obslog.ToolBash
	case "skill":
		return obslog.ToolSkill
	}
	return ""
}
