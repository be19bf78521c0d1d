package ai

import (
	"context"
	"errors"
	"sync"
	"time"

	"pyx-backend/internal/metrics"
	"pyx-backend/internal/model"
	"pyx-backend/pkg/logger"
)

// Response is what the generator hands back. Fallback is nil when the
// selected provider answered; otherwise it explains why the local table did.
type Response struct {
	Content     string
	Suggestions []string
	Source      string
	Usage       *Usage
	Fallback    *ProviderUnavailableError
}

func (r *Response) Degraded() bool { return r.Fallback != nil }

// Generator owns one provider chosen at construction plus the local
// fallback. It is safe for concurrent use.
type Generator struct {
	provider Provider
	initErr  *ProviderUnavailableError
	name     string
	local    *LocalProvider
	metrics  *metrics.Metrics

	// sessions that have already logged the missing-key notice
	noticed sync.Map
}

// NewGenerator builds the provider described by s. Construction never
// fails: an unusable provider leaves the generator answering locally.
func NewGenerator(ctx context.Context, s Settings, m *metrics.Metrics) *Generator {
	p, err := NewProvider(ctx, s)
	g := NewGeneratorWithProvider(p, m)
	g.name = s.Provider
	if g.name == "" {
		g.name = model.ProviderLocal
	}
	if err != nil {
		var pue *ProviderUnavailableError
		if !errors.As(err, &pue) {
			pue = unavailable(s.Provider, ReasonProviderError, err)
		}
		g.initErr = pue
		if pue.Reason != ReasonMissingKey {
			logger.Warnf("AI provider %s unusable, answering locally: %v", s.Provider, err)
		}
	}
	return g
}

// NewGeneratorWithProvider wraps an already built provider. A nil provider
// answers locally without a fallback reason.
func NewGeneratorWithProvider(p Provider, m *metrics.Metrics) *Generator {
	g := &Generator{
		provider: p,
		local:    NewLocalProvider(0),
		metrics:  m,
	}
	if p != nil {
		g.name = p.Name()
		if lp, ok := p.(*LocalProvider); ok {
			g.local = lp
		}
	} else {
		g.name = model.ProviderLocal
	}
	return g
}

// ProviderName is the configured provider, even when it is unusable.
func (g *Generator) ProviderName() string { return g.name }

// Generate always produces an answer.
func (g *Generator) Generate(ctx context.Context, req *Request) *Response {
	start := time.Now()
	if req.Version == 0 {
		req.Version = RequestVersion
	}

	resp := g.generate(ctx, req)
	g.metrics.RecordResponse(resp.Source, resp.Degraded(), time.Since(start))
	if resp.Fallback != nil {
		g.metrics.RecordFallback(resp.Fallback.Provider, string(resp.Fallback.Reason))
	}
	return resp
}

func (g *Generator) generate(ctx context.Context, req *Request) *Response {
	if g.initErr != nil {
		g.logUnavailable(req.SessionID, g.initErr)
		return g.answerLocally(ctx, req, g.initErr)
	}
	if g.provider == nil {
		return g.answerLocally(ctx, req, nil)
	}

	if _, ok := g.provider.(*LocalProvider); ok {
		c, _ := g.provider.Generate(ctx, req)
		return &Response{Content: c.Content, Suggestions: c.Suggestions, Source: model.ProviderLocal}
	}

	c, err := g.provider.Generate(ctx, req)
	if err != nil {
		pue := classify(g.provider.Name(), err)
		g.logUnavailable(req.SessionID, pue)
		return g.answerLocally(ctx, req, pue)
	}

	suggestions := c.Suggestions
	if len(suggestions) == 0 {
		suggestions = SynthesizeSuggestions(c.Content)
	}
	return &Response{
		Content:     c.Content,
		Suggestions: suggestions,
		Source:      g.provider.Name(),
		Usage:       c.Usage,
	}
}

func (g *Generator) answerLocally(ctx context.Context, req *Request, reason *ProviderUnavailableError) *Response {
	c, _ := g.local.Generate(ctx, req)
	return &Response{
		Content:     c.Content,
		Suggestions: c.Suggestions,
		Source:      model.ProviderLocal,
		Fallback:    reason,
	}
}

// logUnavailable reports a missing key once per session at info level;
// real provider failures are warnings every time.
func (g *Generator) logUnavailable(sessionID string, pue *ProviderUnavailableError) {
	if pue.Reason == ReasonMissingKey {
		if _, seen := g.noticed.LoadOrStore(sessionID, struct{}{}); seen {
			return
		}
		logger.Infof("No API key configured for %s, using local responses (session %s)", pue.Provider, sessionID)
		return
	}
	logger.Warnf("AI provider failed, falling back to local responses: %v", pue)
}
