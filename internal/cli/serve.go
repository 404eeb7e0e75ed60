package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lazypower/reverie/internal/clock"
	"github.com/lazypower/reverie/internal/config"
	"github.com/lazypower/reverie/internal/engine"
	"github.com/lazypower/reverie/internal/llm"
	"github.com/lazypower/reverie/internal/logging"
	"github.com/lazypower/reverie/internal/memory"
	"github.com/lazypower/reverie/internal/metrics"
	"github.com/lazypower/reverie/internal/server"
	"github.com/lazypower/reverie/internal/store"
)

// tfidfTerms caps the fallback embedder's vocabulary.
const tfidfTerms = 512

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (default from config, 37778)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logging.For("serve")

	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	start, err := memory.ParseTime(cfg.Memory.Start)
	if err != nil {
		return fmt.Errorf("memory.start: %w", err)
	}
	clk := clock.New(start, cfg.Memory.Tick)

	// Without an LLM every new concept gets the fallback impact.
	var client llm.Client
	if c, err := llm.NewClient(cfg.LLM); err != nil {
		log.WithError(err).Warn("LLM not configured, impact scoring uses the fallback value")
	} else {
		client = c
		log.WithFields(logrus.Fields{"provider": cfg.LLM.Provider, "model": cfg.LLM.Model}).Info("llm")
	}

	rec := metrics.New()
	eng := engine.New(db, client, clk, cfg.Memory)
	eng.SetMetrics(rec)

	emb, err := newEmbedder(cmd.Context(), cfg, db)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	if cfg.Embedding.CacheSize > 0 {
		cached, err := engine.NewCachedEmbedder(emb, cfg.Embedding.CacheSize, rec)
		if err != nil {
			return fmt.Errorf("embedding cache: %w", err)
		}
		defer cached.Close()
		emb = cached
	}
	eng.SetEmbedder(emb)
	log.WithField("model", emb.Model()).Info("embedder")

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           server.New(eng, rec, VersionString()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":     httpServer.Addr,
			"db":       dbPath,
			"sim_time": memory.FormatTime(clk.Now()),
		}).Info("reverie serving")
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// newEmbedder picks the embedding backend. "auto" uses Ollama when it
// answers and falls back to per-agent TF-IDF over the stored descriptions.
func newEmbedder(ctx context.Context, cfg config.Config, db *store.DB) (engine.Embedder, error) {
	e := cfg.Embedding
	ollamaURL := cfg.LLM.OllamaURL
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}

	switch e.Provider {
	case "ollama":
		return engine.NewOllamaEmbedder(ollamaURL, e.Model, e.Dimensions), nil
	case "openai":
		if cfg.LLM.OpenAIKey == "" && cfg.LLM.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("openai embeddings require OPENAI_API_KEY or llm.openai_base_url")
		}
		model := e.Model
		if model == "" || model == config.Default().Embedding.Model {
			model = "text-embedding-3-small"
		}
		return engine.NewOpenAIEmbedder(cfg.LLM.OpenAIKey, cfg.LLM.OpenAIBaseURL, model, e.Dimensions), nil
	case "tfidf":
		return engine.NewTFIDFIndex(db, tfidfTerms)
	case "auto", "":
		if engine.OllamaAvailable(ctx, ollamaURL, e.Model) {
			return engine.NewOllamaEmbedder(ollamaURL, e.Model, e.Dimensions), nil
		}
		logging.For("serve").Info("ollama unavailable, using tfidf embeddings")
		return engine.NewTFIDFIndex(db, tfidfTerms)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", e.Provider)
	}
}
