package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/magi/internal/models"
	"github.com/joescharf/magi/internal/store"
)

var (
	historyLimit  int
	historyStatus string
	historyJSON   bool
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"hist"},
	Short:   "List past reviews",
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyListRun(cmd.Context())
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one past review (full id or unique prefix)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyShowRun(cmd.Context(), args[0])
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete one past review",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyDeleteRun(cmd.Context(), args[0])
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Maximum number of reviews to list (0 for all)")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "Filter by status (passed, failed, timeout, error)")
	historyCmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "Print as JSON")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}

func historyListRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	switch models.RecordStatus(historyStatus) {
	case "", models.RecordStatusPassed, models.RecordStatusFailed, models.RecordStatusTimeout, models.RecordStatusError:
	default:
		return fmt.Errorf("invalid status %q", historyStatus)
	}

	records, err := s.ListReviews(ctx, store.ReviewListFilter{
		Status: models.RecordStatus(historyStatus),
		Limit:  historyLimit,
	})
	if err != nil {
		return err
	}

	if historyJSON {
		return printJSON(records)
	}
	if len(records) == 0 {
		ui.Info("No reviews recorded yet")
		return nil
	}
	ui.Records(records, time.Now())
	return nil
}

func historyShowRun(ctx context.Context, id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	rec, err := s.FindReview(ctx, id)
	if err != nil {
		return err
	}
	if historyJSON {
		return printJSON(rec)
	}
	ui.Record(rec)
	return nil
}

func historyDeleteRun(ctx context.Context, id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	rec, err := s.FindReview(ctx, id)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would delete review %s", rec.ID)
		return nil
	}
	if err := s.DeleteReview(ctx, rec.ID); err != nil {
		return err
	}
	ui.Success("Deleted review %s", rec.ID)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(ui.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
