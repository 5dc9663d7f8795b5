package cli

import (
	"context"

	"github.com/spf13/cobra"

	closeoutapp "github.com/closeout/backend/internal/application/closeout"
)

// SyncDayCmd returns the sync-day command
func SyncDayCmd(load Loader) *cobra.Command {
	var (
		day        string
		workplaces []string
		validate   bool
	)

	cmd := &cobra.Command{
		Use:   "sync-day",
		Short: "Replace one business day in the ledger with the vendor's data",
		Long: `Fetch the three vendor feeds for one business day, choose the authoritative
feed and replace the day's ledger rows of every workplace it touches.

With --validate, raw records failing the pre-mapping checks are skipped.`,
		Example: `  closeout-sync sync-day --day 2025-06-01
  closeout-sync sync-day --day 2025-06-01 --workplace 7 --workplace 9 --validate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, load, func(ctx context.Context, svc *Services) (any, error) {
				return svc.Sync.SyncDay(ctx, closeoutapp.SyncDayRequest{
					BusinessDay:  day,
					WorkplaceIDs: workplaces,
					Validate:     validate,
				})
			})
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "Business day to sync (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&workplaces, "workplace", nil, "Restrict the vendor query to these workplace ids (repeatable)")
	cmd.Flags().BoolVar(&validate, "validate", false, "Skip raw records failing the pre-mapping checks")
	_ = cmd.MarkFlagRequired("day")

	return cmd
}

// FullSyncCmd returns the full-sync command
func FullSyncCmd(load Loader) *cobra.Command {
	var (
		from             string
		to               string
		deleteOutOfRange bool
	)

	cmd := &cobra.Command{
		Use:   "full-sync",
		Short: "Sync every business day of an inclusive date range",
		Long: `Sync each business day from --from to --to, validating every raw record.
Day failures are collected in the result instead of stopping the run.

With --delete-out-of-range, the ledger is first cleaned: rows outside the range
and rows repeating an earlier row's business key are deleted.`,
		Example: `  closeout-sync full-sync --from 2025-06-01 --to 2025-06-30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, load, func(ctx context.Context, svc *Services) (any, error) {
				return svc.Sync.FullSync(ctx, closeoutapp.FullSyncRequest{
					DateFrom:         from,
					DateTo:           to,
					DeleteOutOfRange: deleteOutOfRange,
				})
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First business day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last business day (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&deleteOutOfRange, "delete-out-of-range", false, "Delete ledger rows outside the range")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

// CompleteFieldsCmd returns the complete-fields command
func CompleteFieldsCmd(load Loader) *cobra.Command {
	var req closeoutapp.CompleteFieldsRequest

	cmd := &cobra.Command{
		Use:   "complete-fields",
		Short: "Fill missing till names and payment breakdowns of stored rows",
		Long: `Scan up to --limit ledger rows and fill what older syncs left empty:
till names from the sale-center directory, and payment breakdowns from the
vendor's system closeouts of the row's day.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, load, func(ctx context.Context, svc *Services) (any, error) {
				return svc.Sync.CompleteFields(ctx, req)
			})
		},
	}

	cmd.Flags().IntVar(&req.Limit, "limit", 0, "Maximum number of rows to scan (default from sync.maintenance_limit)")
	cmd.Flags().StringVar(&req.DateFrom, "from", "", "Only rows on or after this business day")
	cmd.Flags().StringVar(&req.DateTo, "to", "", "Only rows on or before this business day")
	cmd.Flags().StringVar(&req.WorkplaceID, "workplace", "", "Only rows of this workplace")

	return cmd
}
