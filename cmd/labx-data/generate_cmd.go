package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/labx-platform/testbed/modules/testcases/domain/generators"
)

type generateOptions struct {
	suite string
	out   string
}

func newGenerateCmd() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate --suite <name> [--out <path>]",
		Short: "Generate a test case suite as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, ctx := catalog(cmd.Context(), nil)
			res, err := svc.Generate(ctx, opts.suite, false)
			if err != nil {
				return withCode(exitUsage, err)
			}
			if strings.TrimSpace(opts.out) == "" {
				return writeJSONLine(cmd.OutOrStdout(), res.Items)
			}
			f, err := os.Create(opts.out)
			if err != nil {
				return withCode(exitIO, err)
			}
			if err := writeJSONLine(f, res.Items); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return withCode(exitIO, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d test cases written to %s\n", res.Count, opts.out)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.suite, "suite", generators.SuiteLTE, strings.Join(generators.Suites(), "|"))
	cmd.Flags().StringVar(&opts.out, "out", "", "output path (stdout when empty)")
	return cmd
}
