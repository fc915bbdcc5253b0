package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type smokeOptions struct {
	BaseURL string
	Retries int
	Verbose bool
}

func newSmokeCmd() *cobra.Command {
	var opts smokeOptions

	cmd := &cobra.Command{
		Use:   "smoke --base-url <url>",
		Short: "Check that the server answers /health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(opts.BaseURL) == "" {
				return errors.New("--base-url is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			client := newRetryClient(newLogger(opts.Verbose), opts.Retries)
			if err := smokeCheck(ctx, client, opts.BaseURL); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return err
		},
	}

	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "http://localhost:3200", "server base URL")
	cmd.Flags().IntVar(&opts.Retries, "retries", 3, "health check retries")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log retries")

	return cmd
}
