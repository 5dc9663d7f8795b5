// Package cli exposes the sync triggers and the ledger administration
// commands of closeout-sync as cobra commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	closeoutapp "github.com/closeout/backend/internal/application/closeout"
)

// SyncRunner is the trigger surface of the sync orchestrator
type SyncRunner interface {
	SyncDay(ctx context.Context, req closeoutapp.SyncDayRequest) (*closeoutapp.SyncDayResult, error)
	FullSync(ctx context.Context, req closeoutapp.FullSyncRequest) (*closeoutapp.FullSyncResult, error)
	CompleteFields(ctx context.Context, req closeoutapp.CompleteFieldsRequest) (*closeoutapp.CompleteFieldsResult, error)
}

// RecordStore is the administrative surface of the ledger
type RecordStore interface {
	CreateManual(ctx context.Context, req closeoutapp.CreateManualRequest) (*closeoutapp.RecordResponse, error)
	Get(ctx context.Context, workplaceID, sortKey string) (*closeoutapp.RecordResponse, error)
	Delete(ctx context.Context, workplaceID, sortKey string) error
}

// Services are the application services a command runs against
type Services struct {
	Sync    SyncRunner
	Records RecordStore
}

// Loader builds the services for one command invocation. The returned
// close function releases connections and flushes telemetry.
type Loader func(ctx context.Context) (*Services, func(context.Context), error)

// NewRootCmd returns the closeout-sync root command
func NewRootCmd(load Loader, version string) *cobra.Command {
	root := &cobra.Command{
		Use:     "closeout-sync",
		Short:   "Synchronise vendor sales closeouts into the closeout ledger",
		Version: version,
		Long: `closeout-sync pulls invoices, system closeouts and POS closeouts from the
hospitality back-office export API, chooses the authoritative feed per business
day and replaces that day's rows in the closeout ledger.

Every command prints its result as indented JSON on stdout. Logs go to stderr.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(SyncDayCmd(load))
	root.AddCommand(FullSyncCmd(load))
	root.AddCommand(CompleteFieldsCmd(load))
	root.AddCommand(RecordCmd(load))

	return root
}

// run loads the services, hands them to fn and writes the result as JSON
func run(cmd *cobra.Command, load Loader, fn func(ctx context.Context, svc *Services) (any, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	svc, closeFn, err := load(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialise services: %w", err)
	}
	if closeFn != nil {
		defer closeFn(context.WithoutCancel(ctx))
	}

	result, err := fn(ctx, svc)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}
