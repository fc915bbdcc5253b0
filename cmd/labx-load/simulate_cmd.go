package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/labx-platform/testbed/modules/loadtesting/domain/entities/loadtest"
	"github.com/labx-platform/testbed/modules/loadtesting/services"
	"github.com/labx-platform/testbed/pkg/serrors"
)

type simulateOptions struct {
	Profile     string
	ProfileFile string
	Seed        int64
	Scalability loadtest.ScalabilityConfig
	overrides
}

type simulateOutput struct {
	Profile     string                      `json:"profile"`
	Load        loadtest.Load               `json:"load"`
	Results     loadtest.Results            `json:"results"`
	Breaches    []loadtest.ThresholdBreach  `json:"thresholdBreaches"`
	Scalability *loadtest.ScalabilityResult `json:"scalability,omitempty"`
}

func newSimulateCmd() *cobra.Command {
	var opts simulateOptions

	cmd := &cobra.Command{
		Use:   "simulate [--profile <name> | --profile-file <yaml>]",
		Short: "Run a simulated load test and scalability sweep offline, printing JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name := opts.Profile
			if name == "" && opts.ProfileFile == "" {
				name = services.StressConfigID
			}
			cfg, err := resolveProfile(name, opts.ProfileFile)
			if err != nil {
				return err
			}
			opts.overrides.apply(&cfg)
			if verrs := serrors.ValidateStruct(cfg.Load); verrs != nil {
				return verrs
			}

			rnd := newLockedRand(opts.Seed)
			res, err := services.Simulate(cmd.Context(), cfg.Load, rnd.Float64)
			if err != nil {
				return err
			}
			out := simulateOutput{
				Profile:  cfg.Name,
				Load:     cfg.Load,
				Results:  res,
				Breaches: loadtest.CheckThresholds(cfg.Thresholds, res),
			}
			if opts.Scalability.MaxInstances > 0 {
				if err := opts.Scalability.Validate(); err != nil {
					return err
				}
				sweep := loadtest.SimulateScalability(opts.Scalability)
				out.Scalability = &sweep
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&opts.Profile, "profile", "", "built-in profile (default "+services.StressConfigID+")")
	cmd.Flags().StringVar(&opts.ProfileFile, "profile-file", "", "YAML profile path")
	cmd.Flags().Int64Var(&opts.Seed, "seed", time.Now().UnixNano(), "random seed")
	cmd.Flags().IntVar(&opts.VUs, "vus", 0, "override virtual users")
	cmd.Flags().IntVar(&opts.DurationSec, "duration", 0, "override duration in seconds")
	cmd.Flags().IntVar(&opts.ThinkTimeMs, "think-time", 0, "override think time in milliseconds")
	cmd.Flags().IntVar(&opts.Scalability.StartInstances, "start-instances", 1, "scalability sweep: first instance count")
	cmd.Flags().IntVar(&opts.Scalability.MaxInstances, "max-instances", 0, "scalability sweep: last instance count (0 disables the sweep)")
	cmd.Flags().IntVar(&opts.Scalability.StepSize, "step-size", 1, "scalability sweep: instances added per step")
	cmd.Flags().Float64Var(&opts.Scalability.LoadPerInstance, "load-per-instance", 100, "scalability sweep: requests per second per instance")

	return cmd
}
