package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/joescharf/magi/internal/llm"
	"github.com/joescharf/magi/internal/models"
)

// PreviewLen is how much agent content the agents table shows.
const PreviewLen = 200

// Preview flattens s onto one line and cuts it to n runes.
func Preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// ShortID returns the first 8 characters of an id.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func yesNo(b bool) string {
	if b {
		return green("yes")
	}
	return red("no")
}

// Outcome renders a finished review.
func (u *UI) Outcome(o *models.ReviewOutcome) {
	fmt.Fprintln(u.Out, cyan("=== MAGI Code Review Results ==="))
	fmt.Fprintf(u.Out, "Final Decision: %s\n", DecisionColor(string(o.Result)))
	fmt.Fprintf(u.Out, "Passed:         %s\n", yesNo(o.Passed))
	if o.RequestID != "" {
		fmt.Fprintf(u.Out, "Request:        %s\n", o.RequestID)
	}
	if o.Partial {
		u.Warning("gateway closed before every agent answered; unanswered agents count as negative")
	}

	fmt.Fprintln(u.Out)
	fmt.Fprintln(u.Out, cyan("Detailed Reviews:"))
	for _, r := range o.Reviews {
		fmt.Fprintf(u.Out, "  %s\n", r)
	}

	agents := o.Agents()
	if len(agents) == 0 {
		return
	}
	fmt.Fprintln(u.Out)
	fmt.Fprintln(u.Out, cyan("Agent States:"))
	table := u.Table([]string{"Agent", "Decision", "Status", "Fragments", "Content"})
	for _, st := range agents {
		_ = table.Append([]string{
			st.Name,
			DecisionColor(string(st.Decision)),
			string(st.Phase),
			fmt.Sprintf("%d", len(st.Messages)),
			Preview(st.Content, PreviewLen),
		})
	}
	_ = table.Render()
}

// Records renders a history listing.
func (u *UI) Records(records []*models.ReviewRecord, now time.Time) {
	table := u.Table([]string{"ID", "Status", "Result", "Duration", "Created", "Input"})
	for _, r := range records {
		_ = table.Append([]string{
			ShortID(r.ID),
			RecordStatusColor(string(r.Status)),
			DecisionColor(string(r.Result)),
			(time.Duration(r.DurationMs) * time.Millisecond).String(),
			humanize.RelTime(r.CreatedAt, now, "ago", "from now"),
			Preview(r.UserInput, 40),
		})
	}
	_ = table.Render()
}

// Record renders one history entry in full.
func (u *UI) Record(r *models.ReviewRecord) {
	fmt.Fprintf(u.Out, "ID:       %s\n", r.ID)
	if r.RequestID != "" {
		fmt.Fprintf(u.Out, "Request:  %s\n", r.RequestID)
	}
	fmt.Fprintf(u.Out, "Status:   %s\n", RecordStatusColor(string(r.Status)))
	fmt.Fprintf(u.Out, "Duration: %s\n", time.Duration(r.DurationMs)*time.Millisecond)
	fmt.Fprintf(u.Out, "Created:  %s (%s)\n", r.CreatedAt.Local().Format(time.RFC3339), humanize.Time(r.CreatedAt))
	if r.UserInput != "" {
		fmt.Fprintf(u.Out, "Input:    %s\n", Preview(r.UserInput, PreviewLen))
	}
	if r.Error != "" {
		fmt.Fprintf(u.Out, "Error:    %s\n", red(r.Error))
	}
	if r.Outcome != nil {
		fmt.Fprintln(u.Out)
		u.Outcome(r.Outcome)
	}
}

// Summary renders an LLM summary of a review.
func (u *UI) Summary(s *llm.Summary) {
	fmt.Fprintln(u.Out)
	fmt.Fprintln(u.Out, cyan("Summary:"))
	fmt.Fprintf(u.Out, "  %s\n", s.Summary)
	if len(s.Issues) > 0 {
		fmt.Fprintln(u.Out, cyan("Issues:"))
		for i, issue := range s.Issues {
			fmt.Fprintf(u.Out, "  %d. %s\n", i+1, issue)
		}
	}
	if s.Recommendation != "" {
		fmt.Fprintf(u.Out, "%s %s\n", cyan("Recommendation:"), s.Recommendation)
	}
}
