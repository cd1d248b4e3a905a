package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"csv-ingest/internal/app"
	"csv-ingest/internal/domain"
	"csv-ingest/internal/eventhandler"
)

func newLoadCmd() *cobra.Command {
	var bucket, name string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load one object as if its notification had just arrived",
		Example: `  ingest load --bucket landing --name raw_data/2024-01-01.csv
  STORAGE_SCHEME=file WAREHOUSE=duckdb ingest load --bucket ./drop --name raw_data/a.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := contextOrBackground(cmd)

			application, err := app.New(ctx, app.Deps{Cfg: cfg, Logger: logger})
			if err != nil {
				return fmt.Errorf("wire app: %w", err)
			}
			defer application.Close() //nolint:errcheck

			return runLoad(cmd.OutOrStdout(), cmd, application.Ingestion, domain.Notification{
				Bucket:    bucket,
				Name:      name,
				EventType: "manual.load",
			})
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "bucket holding the object (required)")
	cmd.Flags().StringVar(&name, "name", "", "object name within the bucket (required)")
	_ = cmd.MarkFlagRequired("bucket")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// runLoad handles one notification and prints the outcome as JSON. A skipped
// object is reported but is not an error.
func runLoad(out io.Writer, cmd *cobra.Command, ing eventhandler.Ingester, n domain.Notification) error {
	res, err := ing.Handle(contextOrBackground(cmd), n)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if res.Skipped {
		return enc.Encode(map[string]string{"status": "skipped", "reason": res.SkipReason})
	}
	return enc.Encode(res.Outcome)
}
