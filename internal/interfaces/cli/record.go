package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	closeoutapp "github.com/closeout/backend/internal/application/closeout"
)

// RecordCmd returns the record command group
func RecordCmd(load Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Inspect and administer individual ledger rows",
	}

	cmd.AddCommand(recordGetCmd(load))
	cmd.AddCommand(recordCreateCmd(load))
	cmd.AddCommand(recordDeleteCmd(load))

	return cmd
}

// recordKeyFlags registers the flags addressing one ledger row
func recordKeyFlags(cmd *cobra.Command, workplaceID, sortKey *string) {
	cmd.Flags().StringVar(workplaceID, "workplace", "", "Workplace id (partition key)")
	cmd.Flags().StringVar(sortKey, "sort-key", "", "Sort key, e.g. 2025-06-01#3#42")
	_ = cmd.MarkFlagRequired("workplace")
	_ = cmd.MarkFlagRequired("sort-key")
}

func recordGetCmd(load Loader) *cobra.Command {
	var workplaceID, sortKey string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show one ledger row",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, load, func(ctx context.Context, svc *Services) (any, error) {
				return svc.Records.Get(ctx, workplaceID, sortKey)
			})
		},
	}
	recordKeyFlags(cmd, &workplaceID, &sortKey)

	return cmd
}

func recordCreateCmd(load Loader) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Store a manually entered ledger row",
		Long: `Read a manual record as JSON from --file (or stdin with --file -) and store it
with source "manual". A row with the same key is overwritten.`,
		Example: `  echo '{"workplace_id":"7","business_day":"2025-06-01","sequence_number":1,"gross":"12.50"}' \
    | closeout-sync record create --file -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readManualRequest(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			return run(cmd, load, func(ctx context.Context, svc *Services) (any, error) {
				return svc.Records.CreateManual(ctx, *req)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "JSON file holding the record, - for stdin")

	return cmd
}

func recordDeleteCmd(load Loader) *cobra.Command {
	var workplaceID, sortKey string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete one ledger row",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, load, func(ctx context.Context, svc *Services) (any, error) {
				if err := svc.Records.Delete(ctx, workplaceID, sortKey); err != nil {
					return nil, err
				}
				return map[string]any{
					"workplace_id": workplaceID,
					"sort_key":     sortKey,
					"deleted":      true,
				}, nil
			})
		},
	}
	recordKeyFlags(cmd, &workplaceID, &sortKey)

	return cmd
}

func readManualRequest(stdin io.Reader, file string) (*closeoutapp.CreateManualRequest, error) {
	var r io.Reader = stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", file, err)
		}
		defer f.Close()
		r = f
	}

	var req closeoutapp.CreateManualRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("failed to parse manual record: %w", err)
	}
	return &req, nil
}
