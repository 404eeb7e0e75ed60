package store

import (
	"math"
	"testing"
)

func TestEncodeDecodeEmbedding(t *testing.T) {
	original := []float64{1.0, -0.5, 0.333, math.Pi, 0.0}
	blob := encodeEmbedding(original)
	decoded := decodeEmbedding(blob)

	if len(decoded) != len(original) {
		t.Fatalf("length mismatch: %d vs %d", len(decoded), len(original))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("index %d: got %f, want %f", i, decoded[i], original[i])
		}
	}
}

func TestDecodeEmptyEmbedding(t *testing.T) {
	for _, blob := range [][]byte{nil, {}} {
		v := decodeEmbedding(blob)
		if v == nil {
			t.Fatal("expected non-nil vector")
		}
		if len(v) != 0 {
			t.Errorf("length = %d, want 0", len(v))
		}
	}
}

func TestVectorDimensions(t *testing.T) {
	db := testDB(t)
	seedAgent(t, db, "Ada")

	short := shortRecord("idle", 3, node(1, "event", []float64{0.1, 0.2}))
	long := longRecord("", node(1, "event", []float64{0.1, 0.2, 0.3}), node(2, "thought", []float64{1, 0, 0}))
	if err := db.SaveSnapshot("Ada", short, long); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	dims, err := db.VectorDimensions("Ada")
	if err != nil {
		t.Fatalf("VectorDimensions: %v", err)
	}
	if len(dims) != 2 || dims[0] != 2 || dims[1] != 3 {
		t.Errorf("dims = %v, want [2 3]", dims)
	}

	dims, err = db.VectorDimensions("Nobody")
	if err != nil {
		t.Fatalf("VectorDimensions: %v", err)
	}
	if len(dims) != 0 {
		t.Errorf("dims for unknown agent = %v, want none", dims)
	}
}
