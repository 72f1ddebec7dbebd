package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SaveReport stores a processing pass report as serialized JSON.
func SaveReport(q Querier, id, mode string, report []byte) error {
	_, err := q.Exec(`
		INSERT INTO pass_reports (id, mode, report, created_at)
		VALUES (?, ?, ?, ?)
	`, id, mode, string(report), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save report %s: %w", id, err)
	}
	return nil
}

// LatestReport returns the most recent pass report JSON, or nil if no pass
// has run yet.
func LatestReport(q Querier) ([]byte, error) {
	var report string
	err := q.QueryRow(`SELECT report FROM pass_reports ORDER BY created_at DESC, id LIMIT 1`).Scan(&report)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest report: %w", err)
	}
	return []byte(report), nil
}
