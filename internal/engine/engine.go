package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/lazypower/reverie/internal/clock"
	"github.com/lazypower/reverie/internal/config"
	"github.com/lazypower/reverie/internal/llm"
	"github.com/lazypower/reverie/internal/logging"
	"github.com/lazypower/reverie/internal/memory"
	"github.com/lazypower/reverie/internal/metrics"
	"github.com/lazypower/reverie/internal/store"
)

var (
	// ErrUnknownAgent is returned for a name with no stored agent.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrAgentExists is returned when creating a name that is taken.
	ErrAgentExists = errors.New("agent already exists")

	// ErrInvalidInput covers requests the engine refuses before touching memory.
	ErrInvalidInput = errors.New("invalid input")
)

// Agent is a loaded agent. Its mutex serializes every operation on its two
// memories; the memories themselves are not safe for concurrent use.
type Agent struct {
	mu    sync.Mutex
	Name  string
	Short *memory.ShortTermMemory
	Long  *memory.LongTermMemory

	embedder Embedder

	// retired is set under mu when the agent is deleted or replaced by an
	// import; holders of the old pointer must look it up again.
	retired bool
}

// AgentInfo summarizes an agent for listings.
type AgentInfo struct {
	Name          string `json:"name"`
	Currently     string `json:"currently"`
	AttentionSpan int    `json:"attention_span"`
	LearnedTraits string `json:"learned_traits"`
	ShortTerm     int    `json:"short_term"`
	LongTerm      int    `json:"long_term"`
}

// Snapshot is an agent's full exchanged state.
type Snapshot struct {
	ShortTerm memory.StoreRecord `json:"short_term"`
	LongTerm  memory.StoreRecord `json:"long_term"`
}

// ThoughtInput describes a thought or chat added directly to a memory.
// Impact 0 asks the impact provider.
type ThoughtInput struct {
	Kind        string  `json:"kind"`
	Subject     string  `json:"subject"`
	Predicate   string  `json:"predicate"`
	Object      string  `json:"object"`
	Description string  `json:"description"`
	Filling     []int64 `json:"filling"`
	Impact      int     `json:"impact"`
}

// PerceiveResult reports what a perceive call stored.
type PerceiveResult struct {
	Batch   string        `json:"batch"`
	Created []ConceptView `json:"created"`
}

// Engine owns the loaded agents and persists them after every change.
type Engine struct {
	DB       *store.DB
	LLM      llm.Client
	Embedder Embedder
	Clock    *clock.Sim
	Metrics  *metrics.Recorder

	cfg config.MemoryConfig
	log *logrus.Entry

	mu     sync.Mutex
	agents map[string]*Agent
}

// New creates an Engine. A nil client rates every concept FallbackImpact.
func New(db *store.DB, client llm.Client, clk *clock.Sim, cfg config.MemoryConfig) *Engine {
	return &Engine{
		DB:     db,
		LLM:    client,
		Clock:  clk,
		cfg:    cfg,
		log:    logging.For("engine"),
		agents: make(map[string]*Agent),
	}
}

// SetEmbedder configures the embedding provider. Agents already loaded keep
// the embedder they were built with.
func (e *Engine) SetEmbedder(emb Embedder) {
	e.Embedder = emb
}

// SetMetrics configures the metrics recorder.
func (e *Engine) SetMetrics(rec *metrics.Recorder) {
	e.Metrics = rec
}

func (e *Engine) memoryConfig(name string, emb Embedder, identity func() string) memory.Config {
	cfg := memory.Config{
		Clock:  e.Clock.Now,
		Logger: e.log.WithField("agent", name),
	}
	if emb != nil {
		cfg.Embeddings = emb
	}
	if e.LLM != nil {
		cfg.Impact = &LLMImpact{
			Client:   e.LLM,
			Agent:    name,
			Identity: identity,
			Metrics:  e.Metrics,
			Log:      e.log,
		}
	} else {
		cfg.Impact = FixedImpact(FallbackImpact)
	}
	return cfg
}

// build turns persisted records into a loaded agent.
func (e *Engine) build(name string, short, long memory.StoreRecord) (*Agent, error) {
	a := &Agent{Name: name}
	identity := func() string {
		if a.Long == nil {
			return ""
		}
		return a.Long.LearnedTraits()
	}
	var err error
	if e.Embedder != nil {
		if a.embedder, err = e.embedderFor(name); err != nil {
			return nil, errors.Wrap(err, "embedder")
		}
	}
	cfg := e.memoryConfig(name, a.embedder, identity)

	if a.Short, err = memory.NewShortTermMemory(short, name, cfg); err != nil {
		return nil, errors.Wrap(err, "short-term memory")
	}
	if a.Long, err = memory.NewLongTermMemory(long, e.cfg.RecallLimit, cfg); err != nil {
		return nil, errors.Wrap(err, "long-term memory")
	}
	return a, nil
}

// CreateAgent stores a new agent with empty memories. A non-positive
// attentionSpan uses the configured default.
func (e *Engine) CreateAgent(name, currently string, attentionSpan int, learnedTraits string) (*AgentInfo, error) {
	if name == "" {
		return nil, errors.Wrap(ErrInvalidInput, "agent name is required")
	}
	if attentionSpan <= 0 {
		attentionSpan = e.cfg.AttentionSpan
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	existing, err := e.DB.GetAgent(name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.Wrap(ErrAgentExists, name)
	}

	short := memory.StoreRecord{Nodes: []memory.NodeRecord{}, Currently: &currently, AttentionSpan: &attentionSpan}
	long := memory.StoreRecord{Nodes: []memory.NodeRecord{}, LearnedTraits: &learnedTraits}
	a, err := e.build(name, short, long)
	if err != nil {
		return nil, err
	}

	if err := e.DB.CreateAgent(&store.Agent{
		Name:          name,
		Currently:     currently,
		AttentionSpan: attentionSpan,
		LearnedTraits: learnedTraits,
	}); err != nil {
		return nil, err
	}
	e.agents[name] = a
	e.Metrics.AgentsLoaded(len(e.agents))
	e.log.WithField("agent", name).Info("created agent")

	info := a.info()
	return &info, nil
}

// Agent returns a loaded agent, reading it from the database on first use.
func (e *Engine) Agent(name string) (*Agent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if a, ok := e.agents[name]; ok {
		return a, nil
	}

	snap, err := e.DB.LoadSnapshot(name)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, errors.Wrap(ErrUnknownAgent, name)
	}
	a, err := e.build(name, snap.Short, snap.Long)
	if err != nil {
		return nil, errors.Wrapf(err, "load agent %s", name)
	}
	e.agents[name] = a
	e.Metrics.AgentsLoaded(len(e.agents))
	e.log.WithFields(logrus.Fields{
		"agent": name,
		"short": a.Short.Len(),
		"long":  a.Long.Len(),
	}).Debug("loaded agent")
	return a, nil
}

// acquire returns the live agent for name with its mutex held.
func (e *Engine) acquire(name string) (*Agent, error) {
	for {
		a, err := e.Agent(name)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		if !a.retired {
			return a, nil
		}
		a.mu.Unlock()
	}
}

// Info returns an agent's summary.
func (e *Engine) Info(name string) (*AgentInfo, error) {
	a, err := e.acquire(name)
	if err != nil {
		return nil, err
	}
	defer a.mu.Unlock()
	info := a.info()
	return &info, nil
}

func (a *Agent) info() AgentInfo {
	return AgentInfo{
		Name:          a.Name,
		Currently:     a.Short.Currently(),
		AttentionSpan: a.Short.AttentionSpan(),
		LearnedTraits: a.Long.LearnedTraits(),
		ShortTerm:     a.Short.Len(),
		LongTerm:      a.Long.Len(),
	}
}

// Agents lists every stored agent by name.
func (e *Engine) Agents() ([]AgentInfo, error) {
	rows, err := e.DB.ListAgents()
	if err != nil {
		return nil, err
	}
	out := make([]AgentInfo, 0, len(rows))
	for _, r := range rows {
		info, err := e.Info(r.Name)
		if errors.Is(err, ErrUnknownAgent) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteAgent forgets an agent entirely.
func (e *Engine) DeleteAgent(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	existing, err := e.DB.GetAgent(name)
	if err != nil {
		return err
	}
	if existing == nil {
		return errors.Wrap(ErrUnknownAgent, name)
	}
	if a, ok := e.agents[name]; ok {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.retired = true
	}
	if err := e.DB.DeleteAgent(name); err != nil {
		return err
	}
	delete(e.agents, name)
	e.Metrics.AgentsLoaded(len(e.agents))
	e.log.WithField("agent", name).Info("deleted agent")
	return nil
}

func (e *Engine) save(a *Agent) error {
	return e.DB.SaveSnapshot(a.Name, a.Short.Export(), a.Long.Export())
}

func (e *Engine) memoryOf(a *Agent, which store.Memory) *memory.Store {
	if which == store.MemoryLong {
		return a.Long.Store
	}
	return a.Short.Store
}

// Perceive logs a batch of facts and stores the new ones as short-term
// events. Concepts created before a provider failure are still saved.
func (e *Engine) Perceive(ctx context.Context, name string, facts []memory.Fact) (*PerceiveResult, error) {
	facts, err := validateFacts(facts)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	a, err := e.acquire(name)
	if err != nil {
		return nil, err
	}
	defer a.mu.Unlock()

	batch, err := e.DB.AddPerceptions(name, e.Clock.Now(), facts)
	if err != nil {
		return nil, err
	}
	e.Metrics.Perceived(len(facts))

	created, procErr := a.Short.ProcessEvents(ctx, facts)
	for _, c := range created {
		e.Metrics.ConceptAdded(string(store.MemoryShort), c.Kind().String())
	}
	if len(created) > 0 {
		if err := e.save(a); err != nil {
			return nil, err
		}
	}
	if procErr != nil {
		return nil, procErr
	}

	e.log.WithFields(logrus.Fields{
		"agent":   name,
		"batch":   batch,
		"facts":   len(facts),
		"created": len(created),
	}).Debug("perceived")
	return &PerceiveResult{Batch: batch, Created: viewsOf(created)}, nil
}

// RecordAction stores an action the agent starts and makes its description
// the agent's current activity.
func (e *Engine) RecordAction(ctx context.Context, name string, f memory.Fact) (*ConceptView, error) {
	f, err := validateFact(f)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	if f.Subject != name {
		return nil, errors.Wrapf(ErrInvalidInput, "action subject %q is not %q", f.Subject, name)
	}
	a, err := e.acquire(name)
	if err != nil {
		return nil, err
	}
	defer a.mu.Unlock()

	before := a.Short.Len()
	c, err := a.Short.RecordAction(ctx, f)
	if err != nil {
		return nil, err
	}
	if a.Short.Len() > before {
		e.Metrics.ConceptAdded(string(store.MemoryShort), c.Kind().String())
	}
	a.Short.SetCurrently(f.Description)
	if err := e.save(a); err != nil {
		return nil, err
	}
	v := viewOf(c)
	return &v, nil
}

// AddThought adds a thought or chat to one of an agent's memories. Every
// filling id must name a concept in that memory.
func (e *Engine) AddThought(ctx context.Context, name string, which store.Memory, in ThoughtInput) (*ConceptView, error) {
	kind, err := memory.ParseKind(in.Kind)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	if kind == memory.KindEvent {
		return nil, errors.Wrap(ErrInvalidInput, "events are added through perceive or actions")
	}
	f, err := validateFact(memory.Fact{
		Subject:     in.Subject,
		Predicate:   in.Predicate,
		Object:      in.Object,
		Description: in.Description,
	})
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	if in.Impact != 0 && (in.Impact < memory.MinImpact || in.Impact > memory.MaxImpact) {
		return nil, errors.Wrapf(ErrInvalidInput, "impact %d outside [%d,%d]", in.Impact, memory.MinImpact, memory.MaxImpact)
	}

	a, err := e.acquire(name)
	if err != nil {
		return nil, err
	}
	defer a.mu.Unlock()

	st := e.memoryOf(a, which)
	for _, id := range in.Filling {
		if _, ok := st.Get(id); !ok {
			return nil, errors.Wrapf(memory.ErrNotFound, "filling id %d", id)
		}
	}

	c, err := st.AddConcept(ctx, memory.ConceptInput{
		Kind:         kind,
		Created:      st.Now(),
		Subject:      f.Subject,
		Predicate:    f.Predicate,
		Object:       f.Object,
		Description:  f.Description,
		Contributing: in.Filling,
		Impact:       in.Impact,
	})
	if err != nil {
		return nil, err
	}
	e.Metrics.ConceptAdded(string(which), kind.String())
	if err := e.save(a); err != nil {
		return nil, err
	}
	v := viewOf(c)
	return &v, nil
}

// Retrieve embeds each focal point and ranks the chosen memory against them.
func (e *Engine) Retrieve(ctx context.Context, name string, which store.Memory, focalPoints []string) (results []ConceptView, err error) {
	start := time.Now()
	defer func() { e.Metrics.Retrieval(string(which), time.Since(start), err) }()

	if len(focalPoints) == 0 {
		return nil, errors.Wrap(ErrInvalidInput, "at least one focal point is required")
	}
	loaded, err := e.Agent(name)
	if err != nil {
		return nil, err
	}
	if loaded.embedder == nil {
		return nil, errors.New("no embedder configured")
	}

	queries := make([][]float64, 0, len(focalPoints))
	for _, fp := range focalPoints {
		vec, err := loaded.embedder.Embed(ctx, fp)
		if err != nil {
			return nil, errors.Wrapf(err, "embed focal point %q", truncateClean(fp, 80))
		}
		queries = append(queries, vec)
	}

	a, err := e.acquire(name)
	if err != nil {
		return nil, err
	}
	defer a.mu.Unlock()

	var ranked []memory.Ranked
	if which == store.MemoryLong {
		ranked, err = a.Long.Retrieve(queries)
	} else {
		ranked, err = a.Short.Retrieve(queries)
	}
	if err != nil {
		return nil, err
	}
	return rankedViews(ranked), nil
}

// Forget removes one concept from an agent's memory.
func (e *Engine) Forget(name string, which store.Memory, id int64) error {
	a, err := e.acquire(name)
	if err != nil {
		return err
	}
	defer a.mu.Unlock()

	if err := e.memoryOf(a, which).RemoveConcept(id); err != nil {
		return err
	}
	e.Metrics.ConceptRemoved(string(which))
	return e.save(a)
}

// Concepts lists every concept in one of an agent's memories, by id.
func (e *Engine) Concepts(name string, which store.Memory) ([]ConceptView, error) {
	a, err := e.acquire(name)
	if err != nil {
		return nil, err
	}
	defer a.mu.Unlock()
	return viewsOf(e.memoryOf(a, which).Concepts()), nil
}

// ConceptQuery narrows a concept listing. With Kind set, results come from
// that kind's index newest first; Keyword further restricts them to one
// keyword bucket. Limit <= 0 means no limit.
type ConceptQuery struct {
	Kind    string
	Keyword string
	Limit   int
}

// FindConcepts lists concepts of one kind, optionally under a keyword.
func (e *Engine) FindConcepts(name string, which store.Memory, q ConceptQuery) ([]ConceptView, error) {
	kind, err := memory.ParseKind(q.Kind)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	a, err := e.acquire(name)
	if err != nil {
		return nil, err
	}
	defer a.mu.Unlock()

	st := e.memoryOf(a, which)
	var found []*memory.Concept
	if q.Keyword != "" {
		found = st.ByKeyword(kind, q.Keyword)
		if q.Limit > 0 && len(found) > q.Limit {
			found = found[:q.Limit]
		}
	} else {
		found = st.Latest(kind, q.Limit)
	}
	return viewsOf(found), nil
}

// ReviseTraits replaces an agent's learned traits.
func (e *Engine) ReviseTraits(name, traits string) (*AgentInfo, error) {
	a, err := e.acquire(name)
	if err != nil {
		return nil, err
	}
	defer a.mu.Unlock()

	a.Long.ReviseLearnedTraits(traits)
	if err := e.save(a); err != nil {
		return nil, err
	}
	info := a.info()
	return &info, nil
}

// CurrentEvents returns the short-term concepts created at the current time.
func (e *Engine) CurrentEvents(name string) ([]ConceptView, error) {
	a, err := e.acquire(name)
	if err != nil {
		return nil, err
	}
	defer a.mu.Unlock()
	return viewsOf(a.Short.CurrentEvents()), nil
}

// Perceptions returns an agent's most recent perceptions, newest first.
func (e *Engine) Perceptions(name string, limit int) ([]store.Perception, error) {
	if _, err := e.Agent(name); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return e.DB.GetPerceptions(name, limit)
}

// Export returns an agent's memories in their exchanged shape.
func (e *Engine) Export(name string) (*Snapshot, error) {
	a, err := e.acquire(name)
	if err != nil {
		return nil, err
	}
	defer a.mu.Unlock()
	return &Snapshot{ShortTerm: a.Short.Export(), LongTerm: a.Long.Export()}, nil
}

// Import replaces an agent's memories with snap, creating the agent if
// needed. Both records are validated before anything is written.
func (e *Engine) Import(name string, snap Snapshot) (*AgentInfo, error) {
	if name == "" {
		return nil, errors.Wrap(ErrInvalidInput, "agent name is required")
	}
	a, err := e.build(name, snap.ShortTerm, snap.LongTerm)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	existing, err := e.DB.GetAgent(name)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := e.DB.CreateAgent(&store.Agent{
			Name:          name,
			Currently:     a.Short.Currently(),
			AttentionSpan: a.Short.AttentionSpan(),
			LearnedTraits: a.Long.LearnedTraits(),
		}); err != nil {
			return nil, err
		}
	}
	if prev, ok := e.agents[name]; ok {
		prev.mu.Lock()
		defer prev.mu.Unlock()
		prev.retired = true
	}
	if err := e.save(a); err != nil {
		return nil, err
	}
	e.agents[name] = a
	e.Metrics.AgentsLoaded(len(e.agents))
	e.log.WithFields(logrus.Fields{
		"agent": name,
		"short": a.Short.Len(),
		"long":  a.Long.Len(),
	}).Info("imported agent")

	info := a.info()
	return &info, nil
}

// Tick advances the simulation clock n steps.
func (e *Engine) Tick(n int) (time.Time, error) {
	t, err := e.Clock.Tick(n)
	if err != nil {
		return time.Time{}, errors.Wrap(ErrInvalidInput, err.Error())
	}
	e.log.WithFields(logrus.Fields{"steps": n, "now": memory.FormatTime(t)}).Debug("tick")
	return t, nil
}
