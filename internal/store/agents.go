package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Agent is the persisted identity and scalar state of one simulated agent.
type Agent struct {
	ID            int64
	Name          string
	Currently     string
	AttentionSpan int
	LearnedTraits string
	CreatedAt     int64
	UpdatedAt     int64
}

// CreateAgent inserts a new agent. Names are unique.
func (db *DB) CreateAgent(a *Agent) error {
	now := time.Now().UnixMilli()
	result, err := db.Exec(`
		INSERT INTO agents (name, currently, attention_span, learned_traits, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.Name, a.Currently, a.AttentionSpan, a.LearnedTraits, now, now)
	if err != nil {
		return fmt.Errorf("create agent %s: %w", a.Name, err)
	}

	id, _ := result.LastInsertId()
	a.ID = id
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

// GetAgent returns an agent by name, or nil if not found.
func (db *DB) GetAgent(name string) (*Agent, error) {
	var a Agent
	err := db.QueryRow(`
		SELECT id, name, currently, attention_span, learned_traits, created_at, updated_at
		FROM agents WHERE name = ?
	`, name).Scan(&a.ID, &a.Name, &a.Currently, &a.AttentionSpan, &a.LearnedTraits, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return &a, nil
}

// ListAgents returns every agent ordered by name.
func (db *DB) ListAgents() ([]Agent, error) {
	rows, err := db.Query(`
		SELECT id, name, currently, attention_span, learned_traits, created_at, updated_at
		FROM agents ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Currently, &a.AttentionSpan, &a.LearnedTraits, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// DeleteAgent removes an agent with its concepts and perceptions.
func (db *DB) DeleteAgent(name string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete agent: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow(`SELECT id FROM agents WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return fmt.Errorf("no agent named %s", name)
	}
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}

	for _, q := range []string{
		`DELETE FROM concept_vectors WHERE agent_id = ?`,
		`DELETE FROM concepts WHERE agent_id = ?`,
		`DELETE FROM perceptions WHERE agent_id = ?`,
		`DELETE FROM agents WHERE id = ?`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return fmt.Errorf("delete agent: %w", err)
		}
	}
	return tx.Commit()
}
