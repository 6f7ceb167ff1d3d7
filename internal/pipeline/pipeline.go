// Package pipeline cleans extracted teasers before they reach the
// de-duplication gate.
package pipeline

import (
	"log/slog"

	"github.com/IshaanNene/newsdesk/internal/config"
	"github.com/IshaanNene/newsdesk/internal/types"
)

// Middleware processes a teaser and returns the (possibly modified) teaser.
// Return nil to drop the teaser from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a teaser. Return nil to drop it.
	Process(t *types.Teaser) (*types.Teaser, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Default builds the ingestion chain: sanitize, trim, optional date
// normalization, then the validity check.
func Default(cfg config.ExtractorConfig, logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(NewSanitizeMiddleware())
	p.Use(&TrimMiddleware{})
	if cfg.DateFormat != "" {
		p.Use(NewDateNormalizeMiddleware(cfg.DateFormat))
	}
	p.Use(&RequiredFieldsMiddleware{RequireURL: true})
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the teaser through all middleware in order.
func (p *Pipeline) Process(t *types.Teaser) (*types.Teaser, error) {
	current := t

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage:  mw.Name(),
				Teaser: current,
				Err:    err,
			}
		}
		if result == nil {
			p.logger.Debug("teaser dropped", "stage", mw.Name(), "url", t.URL)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// ProcessAll runs every teaser through the chain and returns the survivors
// in input order together with the number dropped. A middleware error
// drops that teaser only.
func (p *Pipeline) ProcessAll(teasers []types.Teaser) ([]types.Teaser, int) {
	out := make([]types.Teaser, 0, len(teasers))
	dropped := 0
	for i := range teasers {
		t := teasers[i]
		result, err := p.Process(&t)
		if err != nil {
			p.logger.Warn("pipeline rejected teaser", "title", t.Title, "error", err)
			dropped++
			continue
		}
		if result == nil {
			dropped++
			continue
		}
		out = append(out, *result)
	}
	return out, dropped
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}
