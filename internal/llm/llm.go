// Package llm condenses the three MAGI reviews into one summary with the
// Anthropic API.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/magi/internal/models"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-haiku-4-5-20251001"

// ErrNoReviews is returned when an outcome carries no agent content to summarize.
var ErrNoReviews = errors.New("outcome has no reviews to summarize")

// Summary is the condensed verdict of one review.
type Summary struct {
	Summary        string   `json:"summary"`
	Issues         []string `json:"issues"`
	Recommendation string   `json:"recommendation"`
}

// Client wraps the Anthropic API for review summaries.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
// Extra request options are appended after the key (tests point the base URL
// at a local server this way).
func NewClient(apiKey, model string, opts ...option.RequestOption) *Client {
	all := []option.RequestOption{}
	if apiKey != "" {
		all = append(all, option.WithAPIKey(apiKey))
	}
	all = append(all, opts...)
	if model == "" {
		model = DefaultModel
	}
	client := anthropic.NewClient(all...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildSummaryPrompt constructs the system and user prompts for one outcome.
func buildSummaryPrompt(userInput string, o *models.ReviewOutcome) (system string, user string) {
	system = `You consolidate code reviews written by three independent reviewers. Return a JSON object with exactly three fields:

- "summary": 1-3 sentences describing what the reviewers agree on and where they disagree.
- "issues": an array of short strings, one per distinct problem raised by any reviewer, most severe first. Use an empty array when no problems were raised.
- "recommendation": one sentence telling the author what to do next.

Rules:
- Return valid JSON only, no markdown fencing or explanation
- Do not invent problems that no reviewer mentioned
- Merge duplicate findings into one issue`

	var sb strings.Builder
	if userInput != "" {
		sb.WriteString("Author's description: ")
		sb.WriteString(userInput)
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "Majority decision: %s\n", decisionLabel(o.Result))
	if o.Partial {
		sb.WriteString("Some reviewers did not answer before the session closed.\n")
	}
	sb.WriteString("\nCode:\n")
	sb.WriteString(o.Code)
	sb.WriteString("\n\nReviews:\n")
	for _, r := range o.Reviews {
		sb.WriteString("\n")
		sb.WriteString(r)
		sb.WriteString("\n")
	}
	user = sb.String()
	return
}

func decisionLabel(d models.Decision) string {
	if d == "" {
		return "none"
	}
	return string(d)
}

// Summarize asks the model to condense the outcome's reviews. userInput is the
// description the code was submitted with.
func (c *Client) Summarize(ctx context.Context, userInput string, o *models.ReviewOutcome) (*Summary, error) {
	if o == nil || len(o.Reviews) == 0 {
		return nil, ErrNoReviews
	}
	systemPrompt, userPrompt := buildSummaryPrompt(userInput, o)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return parseSummary(text)
}

// parseSummary decodes the model's JSON answer, tolerating a markdown fence.
func parseSummary(text string) (*Summary, error) {
	text = stripFence(text)
	var s Summary
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	if s.Issues == nil {
		s.Issues = []string{}
	}
	return &s, nil
}

func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.SplitN(text, "\n", 2)
	if len(lines) > 1 {
		text = lines[1]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
