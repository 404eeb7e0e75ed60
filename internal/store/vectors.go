package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
)

// encodeEmbedding converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeEmbedding(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float64. A missing blob
// decodes to an empty, non-nil vector.
func decodeEmbedding(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

func insertVector(tx *sql.Tx, agentID int64, mem Memory, conceptID int64, embedding []float64) error {
	_, err := tx.Exec(`
		INSERT INTO concept_vectors (agent_id, memory, concept_id, embedding, dimensions)
		VALUES (?, ?, ?, ?, ?)
	`, agentID, string(mem), conceptID, encodeEmbedding(embedding), len(embedding))
	if err != nil {
		return fmt.Errorf("save vector for %s concept %d: %w", mem, conceptID, err)
	}
	return nil
}

// VectorDimensions returns the distinct embedding sizes stored for an agent.
// More than one entry means the agent was embedded by different models.
func (db *DB) VectorDimensions(name string) ([]int, error) {
	rows, err := db.Query(`
		SELECT DISTINCT v.dimensions FROM concept_vectors v
		JOIN agents a ON a.id = v.agent_id
		WHERE a.name = ?
		ORDER BY v.dimensions
	`, name)
	if err != nil {
		return nil, fmt.Errorf("vector dimensions: %w", err)
	}
	defer rows.Close()

	var dims []int
	for rows.Next() {
		var d int
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan dimensions: %w", err)
		}
		dims = append(dims, d)
	}
	return dims, rows.Err()
}
