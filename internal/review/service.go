package review

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joescharf/magi/internal/metrics"
	"github.com/joescharf/magi/internal/models"
	"github.com/joescharf/magi/internal/store"
)

// Runner executes a single review.
type Runner interface {
	Run(ctx context.Context, userInput, code string, timeout time.Duration) (*models.ReviewOutcome, error)
}

// Service is the entry point shared by the CLI, the MCP tool and the HTTP
// API. It runs a review and keeps a history record of it.
type Service struct {
	runner  Runner
	store   store.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService wires a runner to an optional history store and metrics.
// Either may be nil.
func NewService(r Runner, s store.Store, m *metrics.Metrics) *Service {
	return &Service{runner: r, store: s, metrics: m, now: time.Now}
}

// Review runs one review. The returned record describes the run whether or
// not it succeeded; its Outcome is nil when err is non-nil. A history write
// failure is logged and does not fail the review.
func (s *Service) Review(ctx context.Context, userInput, code string, timeout time.Duration) (*models.ReviewRecord, error) {
	start := s.now()
	outcome, err := s.runner.Run(ctx, userInput, code, timeout)
	elapsed := s.now().Sub(start)

	rec := &models.ReviewRecord{
		UserInput:  userInput,
		Code:       code,
		DurationMs: elapsed.Milliseconds(),
	}
	switch {
	case err == nil:
		rec.RequestID = outcome.RequestID
		rec.Outcome = outcome
		rec.Result = outcome.Result
		rec.Passed = outcome.Passed
		rec.Status = models.RecordStatusFailed
		if outcome.Passed {
			rec.Status = models.RecordStatusPassed
		}
	case errors.Is(err, ErrTimeout):
		rec.Status = models.RecordStatusTimeout
		rec.Error = err.Error()
		var te *TimeoutError
		if errors.As(err, &te) {
			rec.RequestID = te.RequestID
		}
	default:
		rec.Status = models.RecordStatusError
		rec.Error = err.Error()
	}

	s.metrics.RecordReview(string(rec.Status), elapsed)

	if s.store != nil {
		// Record even when the caller's context is gone.
		if serr := s.store.CreateReview(context.WithoutCancel(ctx), rec); serr != nil {
			slog.Warn("failed to record review", "error", serr)
		}
	}

	return rec, err
}
