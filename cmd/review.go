package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/magi/internal/git"
	"github.com/joescharf/magi/internal/mcp"
	"github.com/joescharf/magi/internal/models"
	"github.com/joescharf/magi/internal/review"
)

var (
	reviewFile    string
	reviewInput   string
	reviewTimeout float64
	reviewOutput  string
	reviewMCPURL  string
	reviewJSON    bool
	reviewDiff    bool
	reviewBase    string
	reviewSummary bool
)

// gitClient is replaceable in tests.
var gitClient git.Client = git.NewClient()

// exampleCode is reviewed when no file is given.
const exampleCode = `
def calculate_sum(numbers):
    total = 0
    for num in numbers:
        total += num
    return total

def main():
    numbers = [1, 2, 3, 4, 5]
    result = calculate_sum(numbers)
    print(f"The sum is: {result}")

if __name__ == "__main__":
    main()
`

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Submit code for a MAGI review",
	Long: `Submit code to the three MAGI agents and print their majority decision.

Without --file an example snippet is reviewed; '-f -' reads stdin.
--diff reviews the current repository's uncommitted changes instead
(against --base, default HEAD).
With --mcp-url the review runs on a remote 'magi mcp --transport sse'
server instead of talking to the gateway directly.`,
	Example: `  magi review -f main.py
  magi review -f main.py --input "adds two numbers" --timeout 120 -o result.json
  magi review --diff --base main --summarize
  magi review --mcp-url http://127.0.0.1:8000/sse -f main.py`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals()...)
		defer stop()
		return reviewRun(ctx)
	},
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewFile, "file", "f", "", "File to review ('-' for stdin)")
	reviewCmd.Flags().StringVar(&reviewInput, "input", "", "What the code is supposed to do (default describes the file)")
	reviewCmd.Flags().Float64Var(&reviewTimeout, "timeout", 0, "Review timeout in seconds (default review.timeout)")
	reviewCmd.Flags().StringVarP(&reviewOutput, "output", "o", "", "Save the outcome as JSON to this file")
	reviewCmd.Flags().StringVar(&reviewMCPURL, "mcp-url", "", "Review through a remote MAGI MCP server (SSE URL)")
	reviewCmd.Flags().BoolVar(&reviewJSON, "json", false, "Print the outcome as JSON")
	reviewCmd.Flags().BoolVar(&reviewDiff, "diff", false, "Review uncommitted changes of the current git repository")
	reviewCmd.Flags().StringVar(&reviewBase, "base", "", "Revision to diff against with --diff (default HEAD)")
	reviewCmd.Flags().BoolVar(&reviewSummary, "summarize", false, "Condense the three reviews with Claude (needs ANTHROPIC_API_KEY)")
	reviewCmd.MarkFlagsMutuallyExclusive("diff", "file")
	reviewCmd.MarkFlagsMutuallyExclusive("json", "summarize")
	rootCmd.AddCommand(reviewCmd)
}

func reviewRun(ctx context.Context) error {
	userInput, code, err := reviewSource()
	if err != nil {
		return err
	}
	timeout := time.Duration(reviewTimeout * float64(time.Second))

	var outcome *models.ReviewOutcome
	if reviewMCPURL != "" {
		ui.VerboseLog("Submitting to MCP server %s", reviewMCPURL)
		remote := &mcp.RemoteReviewer{URL: reviewMCPURL, Version: buildVersion}
		outcome, err = remote.Review(ctx, userInput, code, timeout)
		if err != nil {
			return describeReviewError(fmt.Errorf("remote review: %w", err))
		}
	} else {
		ui.VerboseLog("Submitting %d bytes for review", len(code))
		rec, err := newService(nil).Review(ctx, userInput, code, timeout)
		if err != nil {
			return describeReviewError(err)
		}
		if rec.ID != "" {
			ui.VerboseLog("Recorded as %s", rec.ID)
		}
		outcome = rec.Outcome
	}

	if reviewJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcome); err != nil {
			return err
		}
	} else {
		ui.Outcome(outcome)
		if reviewSummary {
			summarizeOutcome(ctx, userInput, outcome)
		}
	}

	if reviewOutput != "" {
		if err := writeOutcomeFile(reviewOutput, outcome); err != nil {
			ui.Warning("Failed to save results to file: %v", err)
		} else {
			ui.Success("Results saved to: %s", reviewOutput)
		}
	}
	return nil
}

// summarizeOutcome prints an LLM summary. Failures only warn; the review
// itself already succeeded.
func summarizeOutcome(ctx context.Context, userInput string, o *models.ReviewOutcome) {
	c := newLLMClient()
	if c == nil {
		ui.Warning("Skipping summary: ANTHROPIC_API_KEY not set (set env var or anthropic.api_key in config)")
		return
	}
	s, err := c.Summarize(ctx, userInput, o)
	if err != nil {
		ui.Warning("Summary failed: %v", err)
		return
	}
	ui.Summary(s)
}

// reviewSource resolves what to review and how to describe it.
func reviewSource() (userInput, code string, err error) {
	if reviewDiff {
		cwd, err := os.Getwd()
		if err != nil {
			return "", "", err
		}
		userInput, code, err = git.DiffReview(gitClient, cwd, reviewBase)
		if err != nil {
			return "", "", err
		}
	} else {
		code, err = readReviewCode(reviewFile)
		if err != nil {
			return "", "", err
		}
		target := reviewFile
		if target == "" || target == "-" {
			target = "example code"
		}
		userInput = "Please review this code: " + target
	}
	if reviewInput != "" {
		userInput = reviewInput
	}
	return userInput, code, nil
}

// readReviewCode loads the code to review.
func readReviewCode(path string) (string, error) {
	switch path {
	case "":
		return exampleCode, nil
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func writeOutcomeFile(path string, o *models.ReviewOutcome) error {
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// describeReviewError adds a hint for the common failure modes.
func describeReviewError(err error) error {
	var se *review.SessionError
	switch {
	case errors.Is(err, review.ErrTimeout):
		return fmt.Errorf("%w (raise --timeout or review.timeout)", err)
	case errors.As(err, &se) && se.Op == "open":
		return fmt.Errorf("%w (is the gateway running? check gateway.url)", err)
	}
	return err
}
