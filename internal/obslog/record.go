package obslog

import (
	"time"

	"github.com/lazypower/instinct/internal/structural"
)

// Tool names as they appear in observation records. Hook handlers normalize
// the host's tool names into this enum; anything else passes through verbatim
// and is ignored by detectors that don't understand it.
const (
	ToolRead  = "read"
	ToolWrite = "write"
	ToolEdit  = "edit"
	ToolBash  = "bash"
	ToolSkill = "skill-use"
)

// Observation is one structured record of a single tool invocation.
// Records are immutable once written; ordering within a session is
// significant, ordering across sessions is not.
type Observation struct {
	Timestamp time.Time           `json:"timestamp"`
	SessionID string              `json:"session_id"`
	Tool      string              `json:"tool"`
	Input     InputSummary        `json:"input_summary"`
	Output    OutputSummary       `json:"output_summary"`
	Struct    *structural.Payload `json:"structural,omitempty"`
	Patterns  *PatternHints       `json:"patterns,omitempty"`
}

// InputSummary is the per-tool variant of an observation's input. Content is
// never recorded verbatim — only paths, lengths, and bounded previews. Each
// tool populates its own subset of fields.
type InputSummary struct {
	// write / edit
	FilePath      string `json:"file_path,omitempty"`
	ContentLength int    `json:"content_length,omitempty"`
	HasOldString  bool   `json:"has_old_string,omitempty"`
	ReplaceAll    bool   `json:"replace_all,omitempty"`
	IsCorrection  bool   `json:"is_correction,omitempty"`

	// bash
	CommandPreview string `json:"command_preview,omitempty"`
	CommandLength  int    `json:"command_length,omitempty"`

	// skill-use
	SkillName string `json:"skill,omitempty"`
}

// OutputSummary records how the tool invocation ended.
type OutputSummary struct {
	Success   bool   `json:"success"`
	ExitCode  int    `json:"exit_code,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

// PatternHints carries lightweight signals the observation writer computes at
// capture time from its session cache. Detectors treat them as hints, not
// ground truth.
type PatternHints struct {
	Correction      *CorrectionHint      `json:"correction,omitempty"`
	ErrorResolution *ErrorResolutionHint `json:"error_resolution,omitempty"`
	Naming          *NamingHint          `json:"naming,omitempty"`
	ToolPreference  *ToolPreferenceHint  `json:"tool_preference,omitempty"`
	WorkflowHash    string               `json:"workflow_hash,omitempty"`
}

// CorrectionHint marks an Edit that landed shortly after a Write to the
// same file.
type CorrectionHint struct {
	TargetFile        string `json:"target_file"`
	SecondsSinceWrite int    `json:"seconds_since_write"`
}

// ErrorResolutionHint marks a Bash success whose command prefix previously
// failed in the same session.
type ErrorResolutionHint struct {
	CommandPrefix string `json:"command_prefix"`
	Resolved      bool   `json:"resolved"`
}

// NamingHint records the case style and suffix convention of a touched file.
type NamingHint struct {
	Case          string `json:"case"`
	SuffixPattern string `json:"suffix_pattern,omitempty"`
}

// ToolPreferenceHint records a tool choice within a task category, e.g.
// bash grep instead of a dedicated search tool.
type ToolPreferenceHint struct {
	Category string `json:"category"`
	Chose    string `json:"chose"`
}
