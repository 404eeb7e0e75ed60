package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lazypower/reverie/internal/memory"
)

// Memory names one of an agent's two stores.
type Memory string

const (
	MemoryShort Memory = "short"
	MemoryLong  Memory = "long"
)

// ParseMemory accepts "short" or "long"; empty means short.
func ParseMemory(s string) (Memory, error) {
	switch Memory(s) {
	case "", MemoryShort:
		return MemoryShort, nil
	case MemoryLong:
		return MemoryLong, nil
	}
	return "", fmt.Errorf("unknown memory %q (want short or long)", s)
}

// Snapshot is everything persisted for one agent.
type Snapshot struct {
	Agent Agent
	Short memory.StoreRecord
	Long  memory.StoreRecord
}

// SaveSnapshot replaces an agent's persisted state with the given records in
// one transaction. The agent must exist.
func (db *DB) SaveSnapshot(name string, short, long memory.StoreRecord) error {
	if short.Currently == nil || short.AttentionSpan == nil {
		return fmt.Errorf("save snapshot %s: short-term record lacks currently or attention_span", name)
	}
	if long.LearnedTraits == nil {
		return fmt.Errorf("save snapshot %s: long-term record lacks learned_traits", name)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin save snapshot: %w", err)
	}
	defer tx.Rollback()

	var agentID int64
	err = tx.QueryRow(`SELECT id FROM agents WHERE name = ?`, name).Scan(&agentID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("save snapshot: no agent named %s", name)
	}
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if _, err := tx.Exec(`
		UPDATE agents SET currently = ?, attention_span = ?, learned_traits = ?, updated_at = ?
		WHERE id = ?
	`, *short.Currently, *short.AttentionSpan, *long.LearnedTraits, time.Now().UnixMilli(), agentID); err != nil {
		return fmt.Errorf("update agent state: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM concept_vectors WHERE agent_id = ?`, agentID); err != nil {
		return fmt.Errorf("clear vectors: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM concepts WHERE agent_id = ?`, agentID); err != nil {
		return fmt.Errorf("clear concepts: %w", err)
	}

	for _, part := range []struct {
		mem   Memory
		nodes []memory.NodeRecord
	}{{MemoryShort, short.Nodes}, {MemoryLong, long.Nodes}} {
		if err := insertNodes(tx, agentID, part.mem, part.nodes); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func insertNodes(tx *sql.Tx, agentID int64, mem Memory, nodes []memory.NodeRecord) error {
	if len(nodes) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT INTO concepts (agent_id, memory, id, kind, created, subject, predicate, object,
			description, impact, filling)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare concept insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range nodes {
		if n.ID <= 0 {
			return fmt.Errorf("insert %s concept: missing id", mem)
		}
		filling := n.Filling
		if filling == nil {
			filling = []int64{}
		}
		fillingJSON, err := json.Marshal(filling)
		if err != nil {
			return fmt.Errorf("encode filling: %w", err)
		}
		if _, err := stmt.Exec(agentID, string(mem), n.ID, n.Kind.String(), n.Created,
			n.Subject, n.Predicate, n.Object, n.Description, n.Impact, string(fillingJSON)); err != nil {
			return fmt.Errorf("insert %s concept %d: %w", mem, n.ID, err)
		}
		if err := insertVector(tx, agentID, mem, n.ID, n.Embedding); err != nil {
			return err
		}
	}
	return nil
}

// LoadSnapshot returns an agent's persisted state, or nil if the agent does
// not exist. Nodes come back in id order with their ids set.
func (db *DB) LoadSnapshot(name string) (*Snapshot, error) {
	agent, err := db.GetAgent(name)
	if err != nil || agent == nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT c.memory, c.id, c.kind, c.created, c.subject, c.predicate, c.object,
			c.description, c.impact, c.filling, v.embedding
		FROM concepts c
		LEFT JOIN concept_vectors v
			ON v.agent_id = c.agent_id AND v.memory = c.memory AND v.concept_id = c.id
		WHERE c.agent_id = ?
		ORDER BY c.memory, c.id
	`, agent.ID)
	if err != nil {
		return nil, fmt.Errorf("load concepts: %w", err)
	}
	defer rows.Close()

	currently := agent.Currently
	span := agent.AttentionSpan
	traits := agent.LearnedTraits
	snap := &Snapshot{
		Agent: *agent,
		Short: memory.StoreRecord{Nodes: []memory.NodeRecord{}, Currently: &currently, AttentionSpan: &span},
		Long:  memory.StoreRecord{Nodes: []memory.NodeRecord{}, LearnedTraits: &traits},
	}

	for rows.Next() {
		var (
			mem, kind, filling string
			blob               []byte
			n                  memory.NodeRecord
		)
		if err := rows.Scan(&mem, &n.ID, &kind, &n.Created, &n.Subject, &n.Predicate, &n.Object,
			&n.Description, &n.Impact, &filling, &blob); err != nil {
			return nil, fmt.Errorf("scan concept: %w", err)
		}
		if n.Kind, err = memory.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("concept %d: %w", n.ID, err)
		}
		if err := json.Unmarshal([]byte(filling), &n.Filling); err != nil {
			return nil, fmt.Errorf("decode filling for concept %d: %w", n.ID, err)
		}
		n.Embedding = decodeEmbedding(blob)

		switch Memory(mem) {
		case MemoryShort:
			snap.Short.Nodes = append(snap.Short.Nodes, n)
		case MemoryLong:
			snap.Long.Nodes = append(snap.Long.Nodes, n)
		}
	}
	return snap, rows.Err()
}

// ConceptDescriptions returns up to limit concept descriptions, newest
// first. An empty agent covers every agent; limit <= 0 returns all of them.
func (db *DB) ConceptDescriptions(agent string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT c.description FROM concepts c
		JOIN agents a ON a.id = c.agent_id
		WHERE c.description != '' AND (? = '' OR a.name = ?)
		ORDER BY c.created DESC, c.id DESC LIMIT ?
	`, agent, agent, limit)
	if err != nil {
		return nil, fmt.Errorf("concept descriptions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan description: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountConcepts returns the number of stored concepts per memory for an agent.
func (db *DB) CountConcepts(name string) (map[Memory]int, error) {
	rows, err := db.Query(`
		SELECT c.memory, COUNT(*) FROM concepts c
		JOIN agents a ON a.id = c.agent_id
		WHERE a.name = ?
		GROUP BY c.memory
	`, name)
	if err != nil {
		return nil, fmt.Errorf("count concepts: %w", err)
	}
	defer rows.Close()

	counts := map[Memory]int{MemoryShort: 0, MemoryLong: 0}
	for rows.Next() {
		var mem string
		var n int
		if err := rows.Scan(&mem, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Memory(mem)] = n
	}
	return counts, rows.Err()
}
