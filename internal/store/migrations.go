package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "instincts: learned trigger/action records with confidence lifecycle",
		SQL: `
CREATE TABLE instincts (
    id                    TEXT PRIMARY KEY,
    domain                TEXT NOT NULL,
    category              TEXT NOT NULL DEFAULT '',
    trigger_text          TEXT NOT NULL,
    action_text           TEXT NOT NULL,
    confidence            REAL NOT NULL,
    source                TEXT NOT NULL CHECK (source IN ('session-observation', 'inherited', 'imported')),
    auto_approved         INTEGER NOT NULL DEFAULT 0,
    status                TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'pruned', 'conflicted')),
    decayed_weeks         INTEGER NOT NULL DEFAULT 0,
    contributing_sessions TEXT NOT NULL DEFAULT '[]',
    skill_id              TEXT,
    created_at            INTEGER NOT NULL,
    last_reinforced_at    INTEGER NOT NULL
);

CREATE INDEX idx_instincts_domain     ON instincts(domain);
CREATE INDEX idx_instincts_status     ON instincts(status);
CREATE INDEX idx_instincts_confidence ON instincts(confidence DESC);
`,
	},
	{
		Version:     2,
		Description: "skills: evolved clusters of related instincts",
		SQL: `
CREATE TABLE skills (
    id                TEXT PRIMARY KEY,
    domain            TEXT NOT NULL,
    member_ids        TEXT NOT NULL,
    avg_confidence    REAL NOT NULL,
    trigger_count     INTEGER NOT NULL DEFAULT 0,
    last_triggered_at INTEGER,
    created_at        INTEGER NOT NULL
);

CREATE TABLE evolved_groups (
    fingerprint TEXT PRIMARY KEY,
    domain      TEXT NOT NULL,
    skill_id    TEXT NOT NULL,
    created_at  INTEGER NOT NULL,

    FOREIGN KEY (skill_id) REFERENCES skills(id)
);

CREATE INDEX idx_skills_domain ON skills(domain);
`,
	},
	{
		Version:     3,
		Description: "run_state: logical offsets per observation source",
		SQL: `
CREATE TABLE run_state (
    source      TEXT PRIMARY KEY,
    last_offset INTEGER NOT NULL DEFAULT 0,
    last_run_at INTEGER NOT NULL
);
`,
	},
	{
		Version:     4,
		Description: "skill_usage: deduplicated usage feedback events",
		SQL: `
CREATE TABLE skill_usage (
    skill_id   TEXT NOT NULL,
    event_id   TEXT NOT NULL,
    created_at INTEGER NOT NULL,

    PRIMARY KEY (skill_id, event_id),
    FOREIGN KEY (skill_id) REFERENCES skills(id)
);
`,
	},
	{
		Version:     5,
		Description: "pass_reports: structured summary of each processing pass",
		SQL: `
CREATE TABLE pass_reports (
    id          TEXT PRIMARY KEY,
    mode        TEXT NOT NULL,
    report      TEXT NOT NULL,
    created_at  INTEGER NOT NULL
);

CREATE INDEX idx_reports_created ON pass_reports(created_at DESC);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
