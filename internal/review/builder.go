package review

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joescharf/magi/internal/gateway"
	"github.com/joescharf/magi/internal/models"
)

var (
	// ErrNoAgents is returned when a review has nobody to ask.
	ErrNoAgents = errors.New("no review agents configured")
	// ErrDuplicateAgent is returned when two roster entries share a name or an id.
	ErrDuplicateAgent = errors.New("duplicate review agent")
)

// ValidateRoster checks that the roster is non-empty and that every agent has
// a distinct name and id. Outcomes are keyed by name and replies by id.
func ValidateRoster(agents []models.Agent) error {
	if len(agents) == 0 {
		return ErrNoAgents
	}
	names := make(map[string]bool, len(agents))
	ids := make(map[string]bool, len(agents))
	for _, a := range agents {
		if names[a.Name] {
			return fmt.Errorf("%w: name %q", ErrDuplicateAgent, a.Name)
		}
		if ids[a.ID] {
			return fmt.Errorf("%w: id %q", ErrDuplicateAgent, a.ID)
		}
		names[a.Name] = true
		ids[a.ID] = true
	}
	return nil
}

// ComposePrompt wraps the user's context and the code in the delimiters the
// agents expect.
func ComposePrompt(userInput, code string) string {
	return fmt.Sprintf("<user_input>\n%s\n</user_input>\n<response>\n%s\n</response>", userInput, code)
}

// BuildRequest assembles a new review request with a fresh id. Inputs are
// passed through verbatim; only an invalid roster is rejected.
func BuildRequest(userInput, code string, agents []models.Agent, now time.Time) (*models.ReviewRequest, error) {
	if err := ValidateRoster(agents); err != nil {
		return nil, err
	}
	roster := make([]models.Agent, len(agents))
	copy(roster, agents)

	return &models.ReviewRequest{
		ID:        uuid.NewString(),
		Prompt:    ComposePrompt(userInput, code),
		CreatedAt: now,
		Agents:    roster,
	}, nil
}

// wireRequest renders req as the gateway's agent_judgement message.
func wireRequest(req *models.ReviewRequest) gateway.JudgementRequest {
	ids := req.AgentIDs()
	refs := make([]gateway.AgentRef, len(ids))
	for i, id := range ids {
		refs[i] = gateway.AgentRef{AgentID: id}
	}
	return gateway.JudgementRequest{
		Type:      gateway.TypeAgentJudgement,
		RequestID: req.ID,
		Request:   req.Prompt,
		Timestamp: float64(req.CreatedAt.UnixNano()) / float64(time.Second),
		Agents:    refs,
	}
}
