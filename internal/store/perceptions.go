package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/reverie/internal/memory"
)

// Perception is one fact an agent received, kept verbatim for replay and
// debugging. Facts received together share a batch id.
type Perception struct {
	ID          int64  `json:"id"`
	Batch       string `json:"batch"`
	SimTime     string `json:"sim_time"`
	Subject     string `json:"subject"`
	Predicate   string `json:"predicate"`
	Object      string `json:"object"`
	Description string `json:"description"`
	CreatedAt   int64  `json:"created_at"`
}

// AddPerceptions logs a batch of facts for an agent at the given simulation
// time and returns the batch id.
func (db *DB) AddPerceptions(name string, simTime time.Time, facts []memory.Fact) (string, error) {
	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin add perceptions: %w", err)
	}
	defer tx.Rollback()

	var agentID int64
	err = tx.QueryRow(`SELECT id FROM agents WHERE name = ?`, name).Scan(&agentID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("add perceptions: no agent named %s", name)
	}
	if err != nil {
		return "", fmt.Errorf("add perceptions: %w", err)
	}

	batch := uuid.New().String()
	now := time.Now().UnixMilli()
	sim := memory.FormatTime(simTime)
	for _, f := range facts {
		if _, err := tx.Exec(`
			INSERT INTO perceptions (agent_id, batch, sim_time, subject, predicate, object, description, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, agentID, batch, sim, f.Subject, f.Predicate, f.Object, f.Description, now); err != nil {
			return "", fmt.Errorf("add perception: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit perceptions: %w", err)
	}
	return batch, nil
}

// GetPerceptions returns an agent's most recent perceptions, newest first.
func (db *DB) GetPerceptions(name string, limit int) ([]Perception, error) {
	rows, err := db.Query(`
		SELECT p.id, p.batch, p.sim_time, p.subject, p.predicate, p.object, p.description, p.created_at
		FROM perceptions p JOIN agents a ON a.id = p.agent_id
		WHERE a.name = ? ORDER BY p.id DESC LIMIT ?
	`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("get perceptions: %w", err)
	}
	return scanPerceptions(rows)
}

// GetBatch returns the perceptions of one batch in the order received.
func (db *DB) GetBatch(batch string) ([]Perception, error) {
	rows, err := db.Query(`
		SELECT id, batch, sim_time, subject, predicate, object, description, created_at
		FROM perceptions WHERE batch = ? ORDER BY id
	`, batch)
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return scanPerceptions(rows)
}

// CountPerceptions returns the number of perceptions logged for an agent.
func (db *DB) CountPerceptions(name string) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM perceptions p JOIN agents a ON a.id = p.agent_id WHERE a.name = ?
	`, name).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count perceptions: %w", err)
	}
	return count, nil
}

func scanPerceptions(rows *sql.Rows) ([]Perception, error) {
	defer rows.Close()

	var out []Perception
	for rows.Next() {
		var p Perception
		if err := rows.Scan(&p.ID, &p.Batch, &p.SimTime, &p.Subject, &p.Predicate, &p.Object,
			&p.Description, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan perception: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
