package models

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Decision is an agent's or the panel's verdict.
type Decision string

const (
	DecisionUnset    Decision = ""
	DecisionPositive Decision = "POSITIVE"
	DecisionNegative Decision = "NEGATIVE"
)

// MarshalJSON encodes an unset decision as null.
func (d Decision) MarshalJSON() ([]byte, error) {
	if d == DecisionUnset {
		return []byte("null"), nil
	}
	return json.Marshal(string(d))
}

// UnmarshalJSON accepts null as DecisionUnset.
func (d *Decision) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = DecisionUnset
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*d = Decision(s)
	return nil
}

// AgentPhase tracks an agent through a single review.
type AgentPhase string

const (
	AgentPhasePending   AgentPhase = "pending"
	AgentPhaseStreaming AgentPhase = "streaming"
	AgentPhaseCompleted AgentPhase = "completed"
)

// ReviewRequest is the outbound judgement request. Immutable once built.
type ReviewRequest struct {
	ID        string
	Prompt    string
	CreatedAt time.Time
	Agents    []Agent
}

// AgentIDs returns the target agent ids in roster order.
func (r *ReviewRequest) AgentIDs() []string {
	ids := make([]string, len(r.Agents))
	for i, a := range r.Agents {
		ids[i] = a.ID
	}
	return ids
}

// Fragment is one piece of streamed content as it arrived.
type Fragment struct {
	RequestID string    `json:"request_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentState is the per-agent view of a review in flight.
// Decision is set if and only if Completed is true.
type AgentState struct {
	Name      string     `json:"-"`
	Content   string     `json:"content"`
	Decision  Decision   `json:"decision"`
	Completed bool       `json:"completed"`
	Phase     AgentPhase `json:"status"`
	Messages  []Fragment `json:"messages"`
}

// ReviewOutcome is the aggregate result of one review.
type ReviewOutcome struct {
	RequestID string                 `json:"request_id"`
	Reviews   []string               `json:"reviews"`
	Result    Decision               `json:"result"`
	Passed    bool                   `json:"passed"`
	Partial   bool                   `json:"partial"`
	State     map[string]*AgentState `json:"magi_state"`
	Code      string                 `json:"code"`
	// Order lists agent names in roster order.
	Order []string `json:"agent_order,omitempty"`
}

// RestoreNames fills each state's Name from its map key. Names are not part of
// the encoded state.
func (o *ReviewOutcome) RestoreNames() {
	for name, st := range o.State {
		st.Name = name
	}
}

// Agents returns the agent states in roster order. Outcomes recorded without
// Order fall back to the order of their reviews. States matched by neither
// follow in name order.
func (o *ReviewOutcome) Agents() []*AgentState {
	out := make([]*AgentState, 0, len(o.State))
	seen := make(map[string]bool, len(o.State))
	take := func(name string) {
		if st, found := o.State[name]; found && !seen[name] {
			st.Name = name
			out = append(out, st)
			seen[name] = true
		}
	}

	if len(o.Order) > 0 {
		for _, name := range o.Order {
			take(name)
		}
	} else {
		for _, r := range o.Reviews {
			take(o.reviewerOf(r))
		}
	}

	var rest []string
	for name := range o.State {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		take(name)
	}
	return out
}

// reviewerOf finds the state name a "Reviewer <name>: <content>" line belongs
// to. The longest matching name wins so names containing ": " resolve.
func (o *ReviewOutcome) reviewerOf(review string) string {
	rest, ok := strings.CutPrefix(review, "Reviewer ")
	if !ok {
		return ""
	}
	best := ""
	for name := range o.State {
		if strings.HasPrefix(rest, name+": ") && len(name) > len(best) {
			best = name
		}
	}
	return best
}
