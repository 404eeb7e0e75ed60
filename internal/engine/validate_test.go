package engine

import (
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/lazypower/reverie/internal/memory"
)

func TestValidateFact(t *testing.T) {
	tests := []struct {
		name    string
		in      memory.Fact
		want    memory.Fact
		wantErr bool
	}{
		{
			name: "trimmed",
			in:   memory.Fact{Subject: " Maria ", Predicate: "is\t", Object: " reading", Description: " Maria is reading "},
			want: memory.Fact{Subject: "Maria", Predicate: "is", Object: "reading", Description: "Maria is reading"},
		},
		{
			name: "default description",
			in:   memory.Fact{Subject: "Maria", Predicate: "is", Object: "reading"},
			want: memory.Fact{Subject: "Maria", Predicate: "is", Object: "reading", Description: "Maria is reading"},
		},
		{name: "empty subject", in: memory.Fact{Predicate: "is", Object: "reading"}, wantErr: true},
		{name: "blank predicate", in: memory.Fact{Subject: "Maria", Predicate: "  ", Object: "reading"}, wantErr: true},
		{name: "empty object", in: memory.Fact{Subject: "Maria", Predicate: "is"}, wantErr: true},
	}

	for _, tt := range tests {
		got, err := validateFact(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidFact) {
				t.Errorf("%s: err = %v, want ErrInvalidFact", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestValidateFactTruncates(t *testing.T) {
	long := strings.Repeat("word ", 400)
	got, err := validateFact(memory.Fact{Subject: "s", Predicate: "p", Object: "o", Description: long})
	if err != nil {
		t.Fatalf("validateFact: %v", err)
	}
	if len(got.Description) > maxDescriptionChars {
		t.Errorf("description length = %d, want <= %d", len(got.Description), maxDescriptionChars)
	}
	if strings.HasSuffix(got.Description, "wor") {
		t.Error("truncation cut mid-word")
	}
}

func TestValidateFacts(t *testing.T) {
	facts := []memory.Fact{
		{Subject: "a", Predicate: "b", Object: "c"},
		{Subject: "a", Predicate: "", Object: "c"},
	}
	if _, err := validateFacts(facts); err == nil {
		t.Error("expected the batch to be rejected")
	} else if !strings.Contains(err.Error(), "fact 1") {
		t.Errorf("error %q does not name the bad fact", err)
	}

	got, err := validateFacts(facts[:1])
	if err != nil {
		t.Fatalf("validateFacts: %v", err)
	}
	if got[0].Description != "a b c" {
		t.Errorf("description = %q", got[0].Description)
	}
}

func TestTruncateClean(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"short", 100, "short"},
		{"hello world foo bar", 13, "hello world"},
		{"nospaces", 4, "nosp"},
	}

	for _, tt := range tests {
		got := truncateClean(tt.input, tt.maxLen)
		if got != tt.want {
			t.Errorf("truncateClean(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}
