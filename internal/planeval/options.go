package planeval

import (
	"net/http"

	"github.com/okian/nutriplan/internal/domain/nutrition"
	"github.com/okian/nutriplan/internal/domain/scoring"
	"github.com/okian/nutriplan/pkg/logger"
)

// Option applies a configuration option to the Evaluator.
type Option func(*Evaluator)

// WithDeriver sets the deriver used for local target derivation.
func WithDeriver(d *nutrition.Deriver) Option {
	return func(e *Evaluator) {
		if d != nil {
			e.deriver = d
		}
	}
}

// WithScorer sets the scorer used in local mode.
func WithScorer(s *scoring.PlanScorer) Option {
	return func(e *Evaluator) {
		if s != nil {
			e.scorer = s
		}
	}
}

// WithHTTPClient replaces the client used in remote mode.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Evaluator) {
		if c != nil {
			e.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.log = l
		}
	}
}
