package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/labx-platform/testbed/modules/loadtesting/domain/entities/loadtest"
	"github.com/labx-platform/testbed/modules/loadtesting/services"
	"github.com/labx-platform/testbed/pkg/serrors"
)

type runOptions struct {
	BaseURL      string
	Profile      string
	ProfileFile  string
	OutPath      string
	XLSXPath     string
	Seed         int64
	FailOnBreach bool
	SkipSmoke    bool
	Verbose      bool
	overrides
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run (--profile <name> | --profile-file <yaml>) --base-url <url> --out <path>",
		Short: "Run a live load test and write a labx_load_report.v1 JSON report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(opts.OutPath) == "" {
				return errors.New("--out is required")
			}
			cfg, err := resolveProfile(opts.Profile, opts.ProfileFile)
			if err != nil {
				return err
			}
			opts.overrides.apply(&cfg)
			if verrs := serrors.ValidateStruct(cfg.Load); verrs != nil {
				return verrs
			}
			cfg, err = pointAt(cfg, opts.BaseURL)
			if err != nil {
				return err
			}

			logger := newLogger(opts.Verbose)
			if !opts.SkipSmoke {
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				err := smokeCheck(ctx, newRetryClient(logger, 3), opts.BaseURL)
				cancel()
				if err != nil {
					return err
				}
			}

			runner := services.NewLiveRunner(newHTTPClient(), logger, newLockedRand(opts.Seed).Float64)
			startedAt := time.Now().UTC()
			res, err := runner.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			finishedAt := time.Now().UTC()

			report := buildReport(cfg, opts.BaseURL, uuid.NewString(), startedAt, finishedAt, res)
			if err := writeJSON(opts.OutPath, report); err != nil {
				return err
			}
			if opts.XLSXPath != "" {
				if err := writeWorkbook(opts.XLSXPath, cfg, report, startedAt, finishedAt); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d requests, avg %.2fms, error rate %.2f%%, passed=%t\n",
				res.TotalRequests, res.AverageResponseTime, res.ErrorRate, report.Passed)
			if opts.FailOnBreach && !report.Passed {
				return errors.New("thresholds breached")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Profile, "profile", "", "built-in profile ("+strings.Join(builtinProfileNames(), "|")+")")
	cmd.Flags().StringVar(&opts.ProfileFile, "profile-file", "", "YAML profile path")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "http://localhost:3200", "server base URL")
	cmd.Flags().StringVar(&opts.OutPath, "out", "", "output report path")
	cmd.Flags().StringVar(&opts.XLSXPath, "xlsx", "", "also write an XLSX report to this path")
	cmd.Flags().Int64Var(&opts.Seed, "seed", time.Now().UnixNano(), "seed for scenario selection")
	cmd.Flags().BoolVar(&opts.FailOnBreach, "fail-on-breach", false, "exit non-zero when a threshold is breached")
	cmd.Flags().BoolVar(&opts.SkipSmoke, "skip-smoke", false, "do not check /health before the run")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.Flags().IntVar(&opts.VUs, "vus", 0, "override virtual users")
	cmd.Flags().IntVar(&opts.DurationSec, "duration", 0, "override duration in seconds")
	cmd.Flags().IntVar(&opts.ThinkTimeMs, "think-time", 0, "override think time in milliseconds")

	return cmd
}

func resolveProfile(name, file string) (loadtest.Config, error) {
	switch {
	case name != "" && file != "":
		return loadtest.Config{}, errors.New("use either --profile or --profile-file")
	case file != "":
		return loadProfileFile(file)
	case name != "":
		return builtinProfile(name)
	default:
		return loadtest.Config{}, errors.New("--profile or --profile-file is required")
	}
}

func writeWorkbook(path string, cfg loadtest.Config, report loadReportV1, startedAt, finishedAt time.Time) error {
	e := loadtest.Execution{
		ID:                report.RunID,
		ConfigID:          cfg.ID,
		Type:              cfg.Type,
		Mode:              loadtest.ModeLive,
		Status:            loadtest.StatusCompleted,
		StartedAt:         startedAt,
		Results:           report.Results,
		ThresholdBreaches: loadtest.CheckThresholds(cfg.Thresholds, report.Results),
		Metadata:          loadtest.Metadata{Environment: report.Target.BaseURL, Version: loadtest.DefaultVersion},
	}
	e.Finish(loadtest.StatusCompleted, finishedAt)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := services.WriteReport(f, cfg, e); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
