package engine

import (
	"time"

	"github.com/google/uuid"
)

// Pass modes.
const (
	ModeIncremental = "incremental"
	ModeReplay      = "replay"
)

// Report summarizes one lifecycle pass.
type Report struct {
	RunID     string    `json:"run_id"`
	Mode      string    `json:"mode"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`

	ObservationsRead int `json:"observations_read"`
	MalformedLines   int `json:"malformed_lines"`
	Candidates       int `json:"candidates"`

	Created    []string `json:"created"`
	Reinforced []string `json:"reinforced"`
	Decayed    []string `json:"decayed,omitempty"`
	Pruned     []string `json:"pruned"`
	Conflicted []string `json:"conflicted"`
	Merged     []string `json:"merged"`
	Skills     []string `json:"skills,omitempty"`

	Offsets map[string]int64 `json:"offsets"`

	// Replay only: delta against the pre-pass snapshot.
	ReplayDiff *ReplayDiff `json:"replay_diff,omitempty"`
}

// ReplayDiff is the difference between the instinct set before and after a
// full replay.
type ReplayDiff struct {
	Created    []string `json:"created"`
	Reinforced []string `json:"reinforced"`
	Pruned     []string `json:"pruned"`
}

func newReport(mode string, start time.Time) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Mode:      mode,
		StartedAt: start.UTC(),
		Offsets:   make(map[string]int64),
	}
}
