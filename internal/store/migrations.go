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
		Description: "agents: one row per simulated agent",
		SQL: `
CREATE TABLE agents (
    id             INTEGER PRIMARY KEY,
    name           TEXT NOT NULL UNIQUE,
    currently      TEXT NOT NULL DEFAULT '',
    attention_span INTEGER NOT NULL CHECK (attention_span > 0),
    learned_traits TEXT NOT NULL DEFAULT '',
    created_at     INTEGER NOT NULL,
    updated_at     INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "concepts: short- and long-term memory nodes per agent",
		SQL: `
CREATE TABLE concepts (
    agent_id    INTEGER NOT NULL,
    memory      TEXT NOT NULL CHECK (memory IN ('short', 'long')),
    id          INTEGER NOT NULL,
    kind        TEXT NOT NULL CHECK (kind IN ('event', 'thought', 'chat')),

    -- Simulation time, "YYYY-MM-DD HH:MM:SS" UTC
    created     TEXT NOT NULL,

    subject     TEXT NOT NULL,
    predicate   TEXT NOT NULL,
    object      TEXT NOT NULL,
    description TEXT NOT NULL,
    impact      INTEGER NOT NULL CHECK (impact BETWEEN 1 AND 10),
    filling     TEXT NOT NULL DEFAULT '[]',

    PRIMARY KEY (agent_id, memory, id),
    FOREIGN KEY (agent_id) REFERENCES agents(id) ON DELETE CASCADE
);

CREATE INDEX idx_concepts_kind ON concepts(agent_id, memory, kind);
`,
	},
	{
		Version:     3,
		Description: "perceptions: raw facts received per agent",
		SQL: `
CREATE TABLE perceptions (
    id          INTEGER PRIMARY KEY,
    agent_id    INTEGER NOT NULL,
    batch       TEXT NOT NULL,
    sim_time    TEXT NOT NULL,
    subject     TEXT NOT NULL,
    predicate   TEXT NOT NULL,
    object      TEXT NOT NULL,
    description TEXT NOT NULL,
    created_at  INTEGER NOT NULL,
    FOREIGN KEY (agent_id) REFERENCES agents(id) ON DELETE CASCADE
);

CREATE INDEX idx_perceptions_agent ON perceptions(agent_id, id DESC);
CREATE INDEX idx_perceptions_batch ON perceptions(batch);
`,
	},
	{
		Version:     4,
		Description: "concept_vectors: embeddings for concepts",
		SQL: `
CREATE TABLE concept_vectors (
    agent_id   INTEGER NOT NULL,
    memory     TEXT NOT NULL,
    concept_id INTEGER NOT NULL,
    embedding  BLOB NOT NULL,
    dimensions INTEGER NOT NULL,
    PRIMARY KEY (agent_id, memory, concept_id),
    FOREIGN KEY (agent_id, memory, concept_id) REFERENCES concepts(agent_id, memory, id) ON DELETE CASCADE
);
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
