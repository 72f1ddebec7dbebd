package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
)

// Instinct sources.
const (
	SourceSession   = "session-observation"
	SourceInherited = "inherited"
	SourceImported  = "imported"
)

// Instinct statuses.
const (
	StatusActive     = "active"
	StatusPruned     = "pruned"
	StatusConflicted = "conflicted"
)

// Instinct is a learned, scorable behavior: a trigger/action pair with a
// bounded confidence and a lifecycle driven by the confidence engine.
type Instinct struct {
	ID               string
	Domain           string
	Category         string
	Trigger          string
	Action           string
	Confidence       float64
	Source           string
	AutoApproved     bool
	Status           string
	DecayedWeeks     int
	Sessions         []string
	SkillID          string
	CreatedAt        int64
	LastReinforcedAt int64
}

// AddSession records a contributing session id, keeping the set unique
// and sorted.
func (in *Instinct) AddSession(sessionID string) {
	if sessionID == "" {
		return
	}
	for _, s := range in.Sessions {
		if s == sessionID {
			return
		}
	}
	in.Sessions = append(in.Sessions, sessionID)
	sort.Strings(in.Sessions)
}

const instinctColumns = `id, domain, category, trigger_text, action_text, confidence, source,
	auto_approved, status, decayed_weeks, contributing_sessions, skill_id, created_at, last_reinforced_at`

func scanInstinct(scan func(dest ...any) error) (*Instinct, error) {
	var (
		in       Instinct
		approved int
		sessions string
		skillID  sql.NullString
	)
	err := scan(&in.ID, &in.Domain, &in.Category, &in.Trigger, &in.Action, &in.Confidence,
		&in.Source, &approved, &in.Status, &in.DecayedWeeks, &sessions, &skillID,
		&in.CreatedAt, &in.LastReinforcedAt)
	if err != nil {
		return nil, err
	}
	in.AutoApproved = approved != 0
	in.SkillID = skillID.String
	if err := json.Unmarshal([]byte(sessions), &in.Sessions); err != nil {
		return nil, fmt.Errorf("decode sessions for %s: %w", in.ID, err)
	}
	return &in, nil
}

// SaveInstinct inserts or replaces an instinct record.
func SaveInstinct(q Querier, in *Instinct) error {
	sessions, err := json.Marshal(in.Sessions)
	if err != nil {
		return fmt.Errorf("encode sessions for %s: %w", in.ID, err)
	}
	if in.Sessions == nil {
		sessions = []byte("[]")
	}

	approved := 0
	if in.AutoApproved {
		approved = 1
	}
	var skillID any
	if in.SkillID != "" {
		skillID = in.SkillID
	}

	_, err = q.Exec(`
		INSERT INTO instincts (`+instinctColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			domain = excluded.domain,
			category = excluded.category,
			trigger_text = excluded.trigger_text,
			action_text = excluded.action_text,
			confidence = excluded.confidence,
			source = excluded.source,
			auto_approved = excluded.auto_approved,
			status = excluded.status,
			decayed_weeks = excluded.decayed_weeks,
			contributing_sessions = excluded.contributing_sessions,
			skill_id = excluded.skill_id,
			last_reinforced_at = excluded.last_reinforced_at
	`, in.ID, in.Domain, in.Category, in.Trigger, in.Action, in.Confidence, in.Source,
		approved, in.Status, in.DecayedWeeks, string(sessions), skillID,
		in.CreatedAt, in.LastReinforcedAt)
	if err != nil {
		return fmt.Errorf("save instinct %s: %w", in.ID, err)
	}
	return nil
}

// GetInstinct returns one instinct by id, or nil if absent.
func GetInstinct(q Querier, id string) (*Instinct, error) {
	row := q.QueryRow(`SELECT `+instinctColumns+` FROM instincts WHERE id = ?`, id)
	in, err := scanInstinct(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get instinct %s: %w", id, err)
	}
	return in, nil
}

// ListInstincts returns all instincts ordered by confidence descending.
// Pass status "" for all statuses.
func ListInstincts(q Querier, status string) ([]*Instinct, error) {
	query := `SELECT ` + instinctColumns + ` FROM instincts`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY confidence DESC, id`

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list instincts: %w", err)
	}
	defer rows.Close()

	var instincts []*Instinct
	for rows.Next() {
		in, err := scanInstinct(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan instinct: %w", err)
		}
		instincts = append(instincts, in)
	}
	return instincts, rows.Err()
}

// ListInstinctsByDomain returns active instincts in one domain.
func ListInstinctsByDomain(q Querier, domain string) ([]*Instinct, error) {
	rows, err := q.Query(`
		SELECT `+instinctColumns+` FROM instincts
		WHERE domain = ? AND status = 'active'
		ORDER BY confidence DESC, id
	`, domain)
	if err != nil {
		return nil, fmt.Errorf("list instincts by domain: %w", err)
	}
	defer rows.Close()

	var instincts []*Instinct
	for rows.Next() {
		in, err := scanInstinct(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan instinct: %w", err)
		}
		instincts = append(instincts, in)
	}
	return instincts, rows.Err()
}

// DeleteInstinct removes an instinct record entirely (pruning and dedup
// subordination both end here).
func DeleteInstinct(q Querier, id string) error {
	if _, err := q.Exec(`DELETE FROM instincts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete instinct %s: %w", id, err)
	}
	return nil
}

// CountInstincts returns the number of instincts with the given status.
func CountInstincts(q Querier, status string) (int, error) {
	var count int
	err := q.QueryRow(`SELECT COUNT(*) FROM instincts WHERE status = ?`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count instincts: %w", err)
	}
	return count, nil
}
