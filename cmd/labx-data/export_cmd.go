package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type exportOptions struct {
	out       string
	generated bool
}

func newExportCmd() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export --out <catalog.xlsx>",
		Short: "Export the test case catalog to an XLSX workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, svcCtx := catalog(ctx, nil)
			if opts.generated {
				if err := svc.SeedCatalog(svcCtx); err != nil {
					return withCode(exitValidation, err)
				}
			} else {
				pool, err := connectDB(ctx)
				if err != nil {
					return withCode(exitDB, err)
				}
				defer pool.Close()
				svc, svcCtx = catalog(ctx, pool)
			}

			f, err := os.Create(opts.out)
			if err != nil {
				return withCode(exitIO, err)
			}
			n, err := svc.Export(svcCtx, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return withCode(exitIO, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d test cases exported to %s\n", n, opts.out)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.out, "out", "", "output workbook path (required)")
	cmd.Flags().BoolVar(&opts.generated, "generated", false, "export the built-in generated catalog instead of the database")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
