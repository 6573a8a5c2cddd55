package output

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joescharf/magi/internal/llm"
	"github.com/joescharf/magi/internal/models"
)

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short", 10))
	assert.Equal(t, "a b c", Preview("a\n  b\tc", 10))
	assert.Equal(t, "abcde...", Preview("abcdefgh", 5))
	assert.Equal(t, strings.Repeat("x", 200)+"...", Preview(strings.Repeat("x", 300), PreviewLen))
	assert.Equal(t, "日本...", Preview("日本語テキスト", 2))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "01HZZZAA", ShortID("01HZZZAAAA0000000000000001"))
	assert.Equal(t, "abc", ShortID("abc"))
}

func sampleOutcome(partial bool) *models.ReviewOutcome {
	return &models.ReviewOutcome{
		RequestID: "req-1",
		Reviews:   []string{"Reviewer melchior: POSITIVE", "Reviewer casper: NEGATIVE"},
		Result:    models.DecisionNegative,
		Passed:    false,
		Partial:   partial,
		State: map[string]*models.AgentState{
			"melchior": {Content: "POSITIVE", Decision: models.DecisionPositive, Completed: true, Phase: models.AgentPhaseCompleted},
			"casper":   {Content: "NEGATIVE", Decision: models.DecisionNegative, Completed: true, Phase: models.AgentPhaseCompleted},
		},
	}
}

func TestOutcome(t *testing.T) {
	u, out, errOut := newTestUI()
	u.Outcome(sampleOutcome(false))

	text := out.String()
	assert.Contains(t, text, "MAGI Code Review Results")
	assert.Contains(t, text, "Final Decision: NEGATIVE")
	assert.Contains(t, text, "no")
	assert.Contains(t, text, "Reviewer melchior: POSITIVE")
	assert.Contains(t, text, "Reviewer casper: NEGATIVE")
	assert.Contains(t, text, "melchior")
	assert.Contains(t, text, "completed")
	assert.Less(t, strings.Index(text, "Reviewer melchior"), strings.Index(text, "Reviewer casper"))
	assert.Empty(t, errOut.String())
}

func TestOutcome_PartialWarns(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Outcome(sampleOutcome(true))
	assert.Contains(t, errOut.String(), "unanswered agents count as negative")
}

func TestRecords(t *testing.T) {
	u, out, _ := newTestUI()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	u.Records([]*models.ReviewRecord{
		{ID: "01HZZZAAAA0000000000000001", Status: models.RecordStatusPassed, Result: models.DecisionPositive, DurationMs: 1500, CreatedAt: now.Add(-2 * time.Hour), UserInput: "sum"},
		{ID: "01HZZZBBBB0000000000000002", Status: models.RecordStatusTimeout, CreatedAt: now.Add(-time.Minute)},
	}, now)

	text := out.String()
	assert.Contains(t, text, "01HZZZAA")
	assert.Contains(t, text, "passed")
	assert.Contains(t, text, "timeout")
	assert.Contains(t, text, "1.5s")
	assert.Contains(t, text, "2 hours ago")
}

func TestRecord(t *testing.T) {
	u, out, _ := newTestUI()
	u.Record(&models.ReviewRecord{
		ID:        "01HZZZAAAA0000000000000001",
		Status:    models.RecordStatusError,
		Error:     "gateway open: refused",
		CreatedAt: time.Now(),
	})
	text := out.String()
	assert.Contains(t, text, "01HZZZAAAA0000000000000001")
	assert.Contains(t, text, "gateway open: refused")
	assert.NotContains(t, text, "MAGI Code Review Results")
}

func TestSummary(t *testing.T) {
	u, out, _ := newTestUI()
	u.Summary(&llm.Summary{
		Summary:        "casper objects",
		Issues:         []string{"no input validation", "unused import"},
		Recommendation: "validate inputs",
	})

	text := out.String()
	assert.Contains(t, text, "casper objects")
	assert.Contains(t, text, "1. no input validation")
	assert.Contains(t, text, "2. unused import")
	assert.Contains(t, text, "validate inputs")
}

func TestSummary_NoIssues(t *testing.T) {
	u, out, _ := newTestUI()
	u.Summary(&llm.Summary{Summary: "all agree", Issues: []string{}})
	assert.NotContains(t, out.String(), "Issues:")
	assert.NotContains(t, out.String(), "Recommendation:")
}
