package store

import (
	"database/sql"
	"fmt"
	"time"
)

// RunState tracks the last processed logical offset of one observation
// source. Offsets only ever advance, and only as part of a successful
// pass commit.
type RunState struct {
	Source    string
	Offset    int64
	LastRunAt int64
}

// GetOffset returns the last processed offset for a source, or 0 when the
// source has never been processed.
func GetOffset(q Querier, source string) (int64, error) {
	var offset int64
	err := q.QueryRow(`SELECT last_offset FROM run_state WHERE source = ?`, source).Scan(&offset)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get offset for %s: %w", source, err)
	}
	if offset < 0 {
		return 0, fmt.Errorf("corrupt run state for %s: negative offset %d", source, offset)
	}
	return offset, nil
}

// SetOffset records the last processed offset for a source.
func SetOffset(q Querier, source string, offset int64) error {
	_, err := q.Exec(`
		INSERT INTO run_state (source, last_offset, last_run_at)
		VALUES (?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			last_offset = excluded.last_offset,
			last_run_at = excluded.last_run_at
	`, source, offset, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set offset for %s: %w", source, err)
	}
	return nil
}

// ListRunState returns the run state of all known sources.
func ListRunState(q Querier) ([]RunState, error) {
	rows, err := q.Query(`SELECT source, last_offset, last_run_at FROM run_state ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("list run state: %w", err)
	}
	defer rows.Close()

	var states []RunState
	for rows.Next() {
		var rs RunState
		if err := rows.Scan(&rs.Source, &rs.Offset, &rs.LastRunAt); err != nil {
			return nil, fmt.Errorf("scan run state: %w", err)
		}
		states = append(states, rs)
	}
	return states, rows.Err()
}
