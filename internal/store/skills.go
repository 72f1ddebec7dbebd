package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Skill is an evolved artifact grouping three or more related instincts.
// Immutable after creation except for the usage counters.
type Skill struct {
	ID              string
	Domain          string
	MemberIDs       []string
	AvgConfidence   float64
	TriggerCount    int
	LastTriggeredAt *int64
	CreatedAt       int64
}

// SaveSkill inserts a skill record.
func SaveSkill(q Querier, s *Skill) error {
	members, err := json.Marshal(s.MemberIDs)
	if err != nil {
		return fmt.Errorf("encode members for %s: %w", s.ID, err)
	}
	_, err = q.Exec(`
		INSERT INTO skills (id, domain, member_ids, avg_confidence, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.ID, s.Domain, string(members), s.AvgConfidence, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("save skill %s: %w", s.ID, err)
	}
	return nil
}

func scanSkill(scan func(dest ...any) error) (*Skill, error) {
	var (
		s         Skill
		members   string
		triggered sql.NullInt64
	)
	err := scan(&s.ID, &s.Domain, &members, &s.AvgConfidence, &s.TriggerCount, &triggered, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if triggered.Valid {
		s.LastTriggeredAt = &triggered.Int64
	}
	if err := json.Unmarshal([]byte(members), &s.MemberIDs); err != nil {
		return nil, fmt.Errorf("decode members for %s: %w", s.ID, err)
	}
	return &s, nil
}

const skillColumns = `id, domain, member_ids, avg_confidence, trigger_count, last_triggered_at, created_at`

// GetSkill returns one skill by id, or nil if absent.
func GetSkill(q Querier, id string) (*Skill, error) {
	row := q.QueryRow(`SELECT `+skillColumns+` FROM skills WHERE id = ?`, id)
	s, err := scanSkill(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get skill %s: %w", id, err)
	}
	return s, nil
}

// ListSkills returns all skills, newest first.
func ListSkills(q Querier) ([]*Skill, error) {
	rows, err := q.Query(`SELECT ` + skillColumns + ` FROM skills ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	defer rows.Close()

	var skills []*Skill
	for rows.Next() {
		s, err := scanSkill(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		skills = append(skills, s)
	}
	return skills, rows.Err()
}

// HasEvolvedGroup reports whether a membership fingerprint has already
// produced a skill.
func HasEvolvedGroup(q Querier, fingerprint string) (bool, error) {
	var count int
	err := q.QueryRow(`SELECT COUNT(*) FROM evolved_groups WHERE fingerprint = ?`, fingerprint).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check evolved group: %w", err)
	}
	return count > 0, nil
}

// SaveEvolvedGroup records a membership fingerprint so the same group is
// not re-evolved.
func SaveEvolvedGroup(q Querier, fingerprint, domain, skillID string) error {
	_, err := q.Exec(`
		INSERT INTO evolved_groups (fingerprint, domain, skill_id, created_at)
		VALUES (?, ?, ?, ?)
	`, fingerprint, domain, skillID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save evolved group: %w", err)
	}
	return nil
}

// RecordSkillUsage records one usage event, deduplicated by event id.
// Returns false if the event was already recorded.
func RecordSkillUsage(q Querier, skillID, eventID string) (bool, error) {
	res, err := q.Exec(`
		INSERT OR IGNORE INTO skill_usage (skill_id, event_id, created_at)
		VALUES (?, ?, ?)
	`, skillID, eventID, time.Now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("record skill usage: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return false, nil
	}

	_, err = q.Exec(`
		UPDATE skills SET trigger_count = trigger_count + 1, last_triggered_at = ?
		WHERE id = ?
	`, time.Now().UnixMilli(), skillID)
	if err != nil {
		return false, fmt.Errorf("bump skill usage: %w", err)
	}
	return true, nil
}
