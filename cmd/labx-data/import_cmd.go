package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type importOptions struct {
	file   string
	dryRun bool
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import --file <catalog.json|catalog.xlsx>",
		Short: "Upsert test cases from a JSON array or XLSX workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(opts.file)
			if err != nil {
				return withCode(exitIO, err)
			}

			ctx := cmd.Context()
			svc, svcCtx := catalog(ctx, nil)
			if !opts.dryRun {
				pool, err := connectDB(ctx)
				if err != nil {
					return withCode(exitDB, err)
				}
				defer pool.Close()
				svc, svcCtx = catalog(ctx, pool)
			}

			res, err := svc.Import(svcCtx, data)
			if err != nil {
				return withCode(exitValidation, err)
			}
			if err := writeJSONLine(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if res.Failed > 0 {
				return withCode(exitValidation, fmt.Errorf("%d of %d rows failed", res.Failed, res.Failed+res.Created+res.Updated))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "catalog file (required)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "validate against an in-memory catalog without touching the database")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
