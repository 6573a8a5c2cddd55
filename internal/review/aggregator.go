package review

import (
	"time"

	"github.com/joescharf/magi/internal/gateway"
	"github.com/joescharf/magi/internal/models"
)

// IngestResult says what the aggregator did with one inbound message.
type IngestResult int

const (
	IngestAccepted     IngestResult = iota // fragment appended
	IngestCompleted                        // fragment appended and agent finished
	IngestStale                            // request id belongs to another review
	IngestUnknownAgent                     // agent id not on the roster
	IngestIgnored                          // wrong type, finished agent, or aggregation over
)

func (r IngestResult) String() string {
	switch r {
	case IngestAccepted:
		return "accepted"
	case IngestCompleted:
		return "completed"
	case IngestStale:
		return "stale"
	case IngestUnknownAgent:
		return "unknown_agent"
	default:
		return "ignored"
	}
}

// Aggregator folds the gateway's message stream for one request into
// per-agent state. It is not safe for concurrent use; one review drives it
// from a single goroutine.
type Aggregator struct {
	req        *models.ReviewRequest
	classifier Classifier
	now        func() time.Time

	byID      map[string]*models.AgentState
	order     []*models.AgentState
	completed int
	done      bool
	ended     bool
}

// NewAggregator starts collecting for req with every agent pending.
func NewAggregator(req *models.ReviewRequest, c Classifier) *Aggregator {
	a := &Aggregator{
		req:        req,
		classifier: c,
		now:        time.Now,
		byID:       make(map[string]*models.AgentState, len(req.Agents)),
	}
	for _, agent := range req.Agents {
		if _, dup := a.byID[agent.ID]; dup {
			continue
		}
		st := &models.AgentState{Name: agent.Name, Phase: models.AgentPhasePending, Messages: []models.Fragment{}}
		a.byID[agent.ID] = st
		a.order = append(a.order, st)
	}
	return a
}

// Ingest applies one inbound message.
func (a *Aggregator) Ingest(msg *gateway.AgentResponse) IngestResult {
	if a.done || a.ended {
		return IngestIgnored
	}
	if msg.RequestID != a.req.ID {
		return IngestStale
	}
	if msg.Type != gateway.TypeAgentResponse {
		return IngestIgnored
	}
	st, ok := a.byID[msg.AgentID]
	if !ok {
		return IngestUnknownAgent
	}
	if st.Completed {
		return IngestIgnored
	}

	if st.Phase == models.AgentPhasePending {
		st.Phase = models.AgentPhaseStreaming
	}
	st.Content += msg.Content
	st.Messages = append(st.Messages, models.Fragment{
		RequestID: msg.RequestID,
		Content:   msg.Content,
		Timestamp: a.now().UTC(),
	})

	if !msg.Terminal() {
		return IngestAccepted
	}

	st.Phase = models.AgentPhaseCompleted
	st.Completed = true
	st.Decision = a.classifier.Classify(st.Content)
	a.completed++
	if a.completed >= len(a.order) {
		a.done = true
	}
	return IngestCompleted
}

// Done reports whether every agent has completed.
func (a *Aggregator) Done() bool { return a.done }

// EndOfStream records that the channel ended before Done. Agents still
// pending or streaming keep an unset decision and count as non-positive.
func (a *Aggregator) EndOfStream() {
	if !a.done {
		a.ended = true
	}
}

// Partial reports whether aggregation ended before every agent completed.
func (a *Aggregator) Partial() bool { return a.ended }

// Completed returns how many agents have finished.
func (a *Aggregator) Completed() int { return a.completed }

// States returns the per-agent states in roster order.
func (a *Aggregator) States() []*models.AgentState {
	out := make([]*models.AgentState, len(a.order))
	copy(out, a.order)
	return out
}

// State returns the state for an agent id.
func (a *Aggregator) State(agentID string) (*models.AgentState, bool) {
	st, ok := a.byID[agentID]
	return st, ok
}
