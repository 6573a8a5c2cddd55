package gateway

// Message types on the gateway channel.
const (
	TypeAgentJudgement = "agent_judgement"
	TypeAgentResponse  = "agent_response"
)

// Agent response statuses.
const (
	StatusStreaming = "streaming"
	StatusCompleted = "completed"
)

// AgentRef names one target agent in a judgement request.
type AgentRef struct {
	AgentID string `json:"agent_id"`
}

// JudgementRequest is the client to gateway review request.
type JudgementRequest struct {
	Type      string     `json:"type"`
	RequestID string     `json:"request_id"`
	Request   string     `json:"request"`
	Timestamp float64    `json:"timestamp"`
	Agents    []AgentRef `json:"agents"`
}

// AgentResponse is one gateway to client message carrying an agent fragment.
type AgentResponse struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	AgentID   string `json:"agent_id"`
	Content   string `json:"content"`
	Status    string `json:"status"`
}

// Terminal reports whether the message ends its agent's stream.
func (r *AgentResponse) Terminal() bool {
	return r.Status == StatusCompleted
}
