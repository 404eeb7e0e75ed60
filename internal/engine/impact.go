package engine

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/lazypower/reverie/internal/llm"
	"github.com/lazypower/reverie/internal/memory"
	"github.com/lazypower/reverie/internal/metrics"
)

const (
	impactAttempts = 3
	// FallbackImpact is used when the model never answers with a number.
	FallbackImpact = 4
)

var integerRe = regexp.MustCompile(`^-?\d+$`)

// LLMImpact rates poignancy by asking an LLM. It is bound to one agent so
// the prompt can describe who is remembering.
type LLMImpact struct {
	Client   llm.Client
	Agent    string
	Identity func() string
	Metrics  *metrics.Recorder
	Log      *logrus.Entry
}

// Impact asks for a single integer up to three times. Answers are clamped to
// 1..10; when no attempt yields an integer, FallbackImpact is returned.
// Transport errors from the client are returned as-is.
func (p *LLMImpact) Impact(ctx context.Context, kind memory.Kind, description string) (int, error) {
	identity := ""
	if p.Identity != nil {
		identity = p.Identity()
	}
	prompt := llm.ImpactPrompt(kind.String(), p.Agent, identity, description)

	for attempt := 1; attempt <= impactAttempts; attempt++ {
		resp, err := p.Client.Complete(ctx, prompt)
		if err != nil {
			p.Metrics.ImpactCall("error")
			return 0, errors.Wrap(err, "impact")
		}
		if v, ok := parseImpact(resp.Content); ok {
			p.Metrics.ImpactCall("ok")
			return clamp(v, memory.MinImpact, memory.MaxImpact), nil
		}
		if p.Log != nil {
			p.Log.WithFields(logrus.Fields{
				"agent":   p.Agent,
				"attempt": attempt,
				"answer":  truncateClean(resp.Content, 80),
			}).Debug("impact answer was not an integer")
		}
	}

	p.Metrics.ImpactCall("fallback")
	return FallbackImpact, nil
}

// parseImpact accepts a bare integer, tolerating surrounding whitespace and a
// trailing period.
func parseImpact(s string) (int, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if !integerRe.MatchString(s) {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FixedImpact rates everything the same. Used for dry runs with no LLM.
type FixedImpact int

func (f FixedImpact) Impact(context.Context, memory.Kind, string) (int, error) {
	return clamp(int(f), memory.MinImpact, memory.MaxImpact), nil
}
