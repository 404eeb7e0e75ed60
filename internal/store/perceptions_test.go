package store

import (
	"testing"

	"github.com/lazypower/reverie/internal/memory"
)

func sampleFacts() []memory.Fact {
	return []memory.Fact{
		{Subject: "Bob", Predicate: "is", Object: "cooking", Description: "Bob is cooking"},
		{Subject: "stove", Predicate: "is", Object: "hot", Description: "the stove is hot"},
	}
}

func TestAddPerceptions(t *testing.T) {
	db := testDB(t)
	seedAgent(t, db, "Ada")

	batch, err := db.AddPerceptions("Ada", base, sampleFacts())
	if err != nil {
		t.Fatalf("AddPerceptions: %v", err)
	}
	if len(batch) != 36 {
		t.Errorf("batch id = %q, want a uuid", batch)
	}

	got, err := db.GetBatch(batch)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("batch size = %d, want 2", len(got))
	}
	if got[0].Subject != "Bob" || got[1].Subject != "stove" {
		t.Errorf("batch order = %q, %q", got[0].Subject, got[1].Subject)
	}
	if got[0].SimTime != "2023-02-13 09:00:00" {
		t.Errorf("sim time = %q", got[0].SimTime)
	}
}

func TestAddPerceptionsUnknownAgent(t *testing.T) {
	db := testDB(t)

	if _, err := db.AddPerceptions("Nobody", base, sampleFacts()); err == nil {
		t.Error("expected error for unknown agent")
	}
}

func TestGetPerceptionsNewestFirst(t *testing.T) {
	db := testDB(t)
	seedAgent(t, db, "Ada")

	first, _ := db.AddPerceptions("Ada", base, sampleFacts())
	second, _ := db.AddPerceptions("Ada", base, []memory.Fact{
		{Subject: "door", Predicate: "is", Object: "open", Description: "the door is open"},
	})
	if first == second {
		t.Fatal("batches share an id")
	}

	got, err := db.GetPerceptions("Ada", 2)
	if err != nil {
		t.Fatalf("GetPerceptions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d, want 2", len(got))
	}
	if got[0].Subject != "door" || got[0].Batch != second {
		t.Errorf("newest = %+v", got[0])
	}

	n, err := db.CountPerceptions("Ada")
	if err != nil {
		t.Fatalf("CountPerceptions: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}
