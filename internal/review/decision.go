package review

import (
	"strings"

	"github.com/joescharf/magi/internal/models"
)

// Classifier turns an agent's full response into a verdict.
type Classifier interface {
	Classify(content string) models.Decision
}

// SubstringClassifier is positive when Marker appears anywhere in the
// content and negative otherwise, including for empty content. Content that
// mentions both POSITIVE and NEGATIVE is positive.
type SubstringClassifier struct {
	Marker string
}

func (c SubstringClassifier) Classify(content string) models.Decision {
	if c.Marker != "" && strings.Contains(content, c.Marker) {
		return models.DecisionPositive
	}
	return models.DecisionNegative
}

// Quorum is the number of positive votes needed to pass among n agents.
func Quorum(n int) int {
	return n/2 + 1
}

// Reduce computes the panel decision by strict majority. Agents without a
// decision count as non-positive.
func Reduce(states []*models.AgentState) (models.Decision, bool) {
	positive := 0
	for _, s := range states {
		if s.Decision == models.DecisionPositive {
			positive++
		}
	}
	passed := positive >= Quorum(len(states))
	if passed {
		return models.DecisionPositive, true
	}
	return models.DecisionNegative, false
}
