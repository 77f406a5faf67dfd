package planeval

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/okian/nutriplan/pkg/logger"
)

// ErrPlansFailed is returned by Run when at least one candidate failed.
var ErrPlansFailed = errors.New("some plans failed")

// Run loads cfg.Input, evaluates it and writes the report to w.
func Run(ctx context.Context, cfg Config, w io.Writer, opts ...Option) error {
	in, err := LoadFile(cfg.Input)
	if err != nil {
		return err
	}

	log := logger.Named("plan-eval")
	e := NewEvaluator(cfg, append([]Option{WithLogger(log)}, opts...)...)
	log.Info(ctx, "starting plan evaluation",
		logger.String("input", cfg.Input),
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("plans", len(in.Plans)))

	report, err := e.Evaluate(ctx, in)
	if err != nil {
		return err
	}
	if err := WriteReport(w, report, cfg.Top); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrPlansFailed, report.Failed, len(report.Results))
	}
	return nil
}
