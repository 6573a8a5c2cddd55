package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joescharf/magi/internal/gateway"
	"github.com/joescharf/magi/internal/metrics"
	"github.com/joescharf/magi/internal/models"
)

// Conn is one open gateway channel, owned by a single review.
type Conn interface {
	Send(ctx context.Context, v any) error
	Receive(ctx context.Context) (*gateway.AgentResponse, error)
	Close() error
}

// DialFunc opens a fresh gateway channel authenticated as appID with token.
type DialFunc func(ctx context.Context, appID, token string) (Conn, error)

// GatewayDialer dials the WebSocket gateway at baseURL.
func GatewayDialer(baseURL string, opts gateway.Options) DialFunc {
	return func(ctx context.Context, appID, token string) (Conn, error) {
		s, err := gateway.Open(ctx, baseURL, appID, token, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithDialer replaces the gateway dialer.
func WithDialer(d DialFunc) Option {
	return func(o *Orchestrator) { o.dial = d }
}

// WithClassifier replaces the verdict classifier.
func WithClassifier(c Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

// WithMetrics records gateway traffic and verdicts into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator runs one review end to end per Run call. Runs are independent
// and may execute concurrently; each dials its own session.
type Orchestrator struct {
	cfg        Config
	dial       DialFunc
	classifier Classifier
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewOrchestrator creates an orchestrator for cfg.
func NewOrchestrator(cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		dial:       GatewayDialer(cfg.GatewayURL, gateway.Options{HandshakeTimeout: cfg.HandshakeTimeout}),
		classifier: SubstringClassifier{Marker: cfg.PositiveMarker},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run submits code for review and blocks until every agent has answered, the
// gateway closes the channel, or timeout elapses. timeout <= 0 uses the
// configured default. The gateway session is closed on every path.
func (o *Orchestrator) Run(ctx context.Context, userInput, code string, timeout time.Duration) (*models.ReviewOutcome, error) {
	if timeout <= 0 {
		timeout = o.cfg.Timeout
	}

	req, err := BuildRequest(userInput, code, o.cfg.Agents, o.now())
	if err != nil {
		return nil, err
	}
	log := slog.With("request_id", req.ID)

	token := o.cfg.Credentials.Token(o.now())
	conn, err := o.dial(ctx, o.cfg.Credentials.AppID, token)
	if err != nil {
		return nil, &SessionError{Op: "open", Err: err}
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Debug("gateway_close_failed", "error", cerr)
		}
	}()

	o.metrics.ReviewStarted()
	defer o.metrics.ReviewFinished()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	agg := NewAggregator(req, o.classifier)
	agg.now = o.now

	timedOut := func() *TimeoutError {
		return &TimeoutError{RequestID: req.ID, Timeout: timeout, Completed: agg.Completed(), Total: len(req.Agents)}
	}

	log.Debug("review_request_sending", "agents", len(req.Agents))
	if err := conn.Send(runCtx, wireRequest(req)); err != nil {
		if ctx.Err() == nil && runCtx.Err() != nil {
			return nil, timedOut()
		}
		return nil, &SessionError{Op: "send", Err: err}
	}

	for !agg.Done() {
		msg, err := conn.Receive(runCtx)
		if err != nil {
			if errors.Is(err, gateway.ErrEndOfStream) {
				log.Warn("review_stream_ended", "completed", agg.Completed(), "total", len(req.Agents))
				agg.EndOfStream()
				break
			}
			if ctx.Err() != nil {
				return nil, fmt.Errorf("review cancelled: %w", ctx.Err())
			}
			if runCtx.Err() != nil {
				log.Warn("review_timed_out", "timeout", timeout, "completed", agg.Completed())
				return nil, timedOut()
			}
			return nil, &SessionError{Op: "receive", Err: err}
		}

		res := agg.Ingest(msg)
		o.metrics.RecordMessage(res.String())
		switch res {
		case IngestStale:
			log.Debug("review_stale_message", "other_request_id", msg.RequestID)
		case IngestUnknownAgent:
			log.Debug("review_unknown_agent", "agent_id", msg.AgentID)
		case IngestCompleted:
			st, _ := agg.State(msg.AgentID)
			log.Debug("review_agent_completed", "agent", st.Name, "decision", st.Decision)
			o.metrics.RecordDecision(st.Name, string(st.Decision))
		}
	}

	outcome := assembleOutcome(req, agg, code)
	log.Debug("review_done", "result", outcome.Result, "passed", outcome.Passed, "partial", outcome.Partial)
	return outcome, nil
}

// assembleOutcome reduces the aggregated states into the final result.
func assembleOutcome(req *models.ReviewRequest, agg *Aggregator, code string) *models.ReviewOutcome {
	states := agg.States()
	result, passed := Reduce(states)

	reviews := make([]string, 0, len(states))
	order := make([]string, 0, len(states))
	byName := make(map[string]*models.AgentState, len(states))
	for _, st := range states {
		reviews = append(reviews, fmt.Sprintf("Reviewer %s: %s", st.Name, st.Content))
		order = append(order, st.Name)
		byName[st.Name] = st
	}

	return &models.ReviewOutcome{
		RequestID: req.ID,
		Reviews:   reviews,
		Result:    result,
		Passed:    passed,
		Partial:   agg.Partial(),
		State:     byName,
		Code:      code,
		Order:     order,
	}
}
