package review

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/magi/internal/gateway"
	"github.com/joescharf/magi/internal/models"
)

func TestComposePrompt(t *testing.T) {
	got := ComposePrompt("Please review", "x = 1")
	assert.Equal(t, "<user_input>\nPlease review\n</user_input>\n<response>\nx = 1\n</response>", got)
}

func TestBuildRequest(t *testing.T) {
	now := time.Unix(1700000000, 500_000_000)
	agents := models.DefaultAgents()

	req, err := BuildRequest("ctx", "code", agents, now)
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, now, req.CreatedAt)
	assert.Equal(t, agents, req.Agents)
	assert.Equal(t, ComposePrompt("ctx", "code"), req.Prompt)

	// The roster is copied, not aliased.
	agents[0].Name = "changed"
	assert.Equal(t, "melchior", req.Agents[0].Name)
}

func TestBuildRequest_UniqueIDs(t *testing.T) {
	a, err := BuildRequest("", "", models.DefaultAgents(), time.Now())
	require.NoError(t, err)
	b, err := BuildRequest("", "", models.DefaultAgents(), time.Now())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestBuildRequest_PassesBlankInputThrough(t *testing.T) {
	req, err := BuildRequest("  ", "", models.DefaultAgents(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "<user_input>\n  \n</user_input>\n<response>\n\n</response>", req.Prompt)
}

func TestBuildRequest_NoAgents(t *testing.T) {
	_, err := BuildRequest("ctx", "code", nil, time.Now())
	assert.ErrorIs(t, err, ErrNoAgents)
}

func TestBuildRequest_DuplicateAgents(t *testing.T) {
	tests := []struct {
		name   string
		agents []models.Agent
		want   string
	}{
		{"shared name", []models.Agent{{Name: "a", ID: "1"}, {Name: "a", ID: "2"}, {Name: "b", ID: "3"}}, `name "a"`},
		{"shared id", []models.Agent{{Name: "a", ID: "1"}, {Name: "b", ID: "1"}}, `id "1"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildRequest("ctx", "code", tt.agents, time.Now())
			require.ErrorIs(t, err, ErrDuplicateAgent)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateRoster(t *testing.T) {
	assert.NoError(t, ValidateRoster(models.DefaultAgents()))
	assert.ErrorIs(t, ValidateRoster(nil), ErrNoAgents)
}

func TestWireRequest(t *testing.T) {
	req := &models.ReviewRequest{
		ID:        "req-1",
		Prompt:    "p",
		CreatedAt: time.Unix(1700000000, 250_000_000),
		Agents:    []models.Agent{{Name: "a", ID: "id-a"}, {Name: "b", ID: "id-b"}},
	}
	w := wireRequest(req)
	assert.Equal(t, gateway.TypeAgentJudgement, w.Type)
	assert.Equal(t, "req-1", w.RequestID)
	assert.Equal(t, "p", w.Request)
	assert.InDelta(t, 1700000000.25, w.Timestamp, 1e-6)
	assert.Equal(t, []gateway.AgentRef{{AgentID: "id-a"}, {AgentID: "id-b"}}, w.Agents)
	assert.Equal(t, []string{"id-a", "id-b"}, req.AgentIDs())
}
