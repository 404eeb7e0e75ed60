package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lazypower/reverie/internal/clock"
	"github.com/lazypower/reverie/internal/config"
	"github.com/lazypower/reverie/internal/engine"
	"github.com/lazypower/reverie/internal/server"
	"github.com/lazypower/reverie/internal/store"
)

// testServerURL starts an in-memory reverie server.
func testServerURL(t *testing.T) string {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	start := time.Date(2023, 2, 13, 9, 0, 0, 0, time.UTC)
	eng := engine.New(db, nil, clock.New(start, time.Minute), config.Default().Memory)
	eng.SetEmbedder(engine.NewTFIDFEmbedderFromDocs([]string{
		"Maria is drinking coffee",
		"Isabella is planning a party",
	}, 32))
	ts := httptest.NewServer(server.New(eng, nil, "test"))
	t.Cleanup(ts.Close)
	return ts.URL
}

// run executes the root command with args and returns its combined output.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	createCurrently, createSpan, createTraits = "", 0, ""
	retrieveLong, retrieveLimit = false, 0
	forgetLong = false
	exportOut = ""
	cfgFile, serverURL = "", ""

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "reverie dev") {
		t.Errorf("output = %q", out)
	}
}

func TestAgentWorkflow(t *testing.T) {
	url := testServerURL(t)

	if _, err := run(t, "", "--server", url, "agents", "create", "Klaus", "--currently", "Klaus is idle", "--traits", "curious"); err != nil {
		t.Fatalf("create: %v", err)
	}

	facts := `[{"subject":"Maria","predicate":"is drinking","object":"coffee"},
	           {"subject":"Isabella","predicate":"is planning","object":"party"}]`
	out, err := run(t, facts, "--server", url, "perceive", "Klaus")
	if err != nil {
		t.Fatalf("perceive: %v", err)
	}
	if !strings.Contains(out, "2 of 2 facts stored") {
		t.Errorf("perceive output = %q", out)
	}

	out, err = run(t, "", "--server", url, "retrieve", "Klaus", "coffee", "-n", "1")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if !strings.HasPrefix(out, "1. [") || !strings.Contains(out, "coffee") {
		t.Errorf("retrieve output = %q", out)
	}
	if strings.Contains(out, "2. ") {
		t.Errorf("limit ignored: %q", out)
	}

	out, err = run(t, "", "--server", url, "agents")
	if err != nil {
		t.Fatalf("agents: %v", err)
	}
	if !strings.Contains(out, "Klaus") || !strings.Contains(out, "Klaus is idle") {
		t.Errorf("agents output = %q", out)
	}

	path := filepath.Join(t.TempDir(), "klaus.json")
	if _, err := run(t, "", "--server", url, "export", "Klaus", "-o", path); err != nil {
		t.Fatalf("export: %v", err)
	}
	out, err = run(t, "", "--server", url, "import", "Copy", path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "imported Copy: 2 short-term, 0 long-term") {
		t.Errorf("import output = %q", out)
	}

	if _, err := run(t, "", "--server", url, "forget", "Copy", "1"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, err := run(t, "", "--server", url, "forget", "Copy", "1"); err == nil {
		t.Error("forgetting twice should fail")
	}
	if _, err := run(t, "", "--server", url, "forget", "Copy", "1", "--long"); err == nil {
		t.Error("forgetting from empty long-term memory should fail")
	}
}

func TestTickCommand(t *testing.T) {
	url := testServerURL(t)

	out, err := run(t, "", "--server", url, "tick", "15")
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if strings.TrimSpace(out) != "2023-02-13 09:15:00 (tick 15)" {
		t.Errorf("output = %q", out)
	}

	if _, err := run(t, "", "--server", url, "tick", "soon"); err == nil {
		t.Error("non-numeric steps should fail")
	}
}

func TestImportRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := run(t, "", "--server", "http://127.0.0.1:1", "import", "Klaus", path)
	if err == nil || !strings.Contains(err.Error(), "not valid JSON") {
		t.Errorf("err = %v, want invalid JSON error", err)
	}
}

func TestNewEmbedderTFIDF(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	c := config.Default()
	c.Embedding.Provider = "tfidf"
	emb, err := newEmbedder(context.Background(), c, db)
	if err != nil {
		t.Fatalf("newEmbedder: %v", err)
	}
	if emb.Model() != "tfidf" {
		t.Errorf("model = %q", emb.Model())
	}
	if _, ok := emb.(engine.AgentScoped); !ok {
		t.Errorf("tfidf embedder %T is not scoped per agent", emb)
	}

	c.Embedding.Provider = "openai"
	c.LLM.OpenAIKey, c.LLM.OpenAIBaseURL = "", ""
	if _, err := newEmbedder(context.Background(), c, db); err == nil {
		t.Error("openai without key or base url should fail")
	}

	c.Embedding.Provider = "word2vec"
	if _, err := newEmbedder(context.Background(), c, db); err == nil {
		t.Error("unknown provider should fail")
	}
}
