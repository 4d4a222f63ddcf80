package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fieldcast/app"
	"github.com/kilianp07/fieldcast/config"
	"github.com/kilianp07/fieldcast/pkg/taskfile"
)

var predictFlags struct {
	tasks      string
	samples    int
	seed       uint64
	arSample   bool
	noiseless  bool
	normalised bool
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict every task of a task file and write the run to the sinks",
	RunE:  runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringVarP(&predictFlags.tasks, "tasks", "t", "tasks.yaml", "task file (yaml or json)")
	f.IntVarP(&predictFlags.samples, "samples", "n", 0, "number of samples, overrides predict.n_samples")
	f.Uint64Var(&predictFlags.seed, "seed", 0, "random seed, overrides predict.seed")
	f.BoolVar(&predictFlags.arSample, "ar-sample", false, "draw samples autoregressively")
	f.BoolVar(&predictFlags.noiseless, "noiseless", true, "draw samples without observation noise")
	f.BoolVar(&predictFlags.normalised, "normalised", false, "locations are already in model space")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, _ []string) error {
	req, err := taskfile.Load(predictFlags.tasks)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	return withService(cmd, func(ctx context.Context, cfg *config.Config, svc *app.Service) error {
		opts := cfg.Predict
		flags := cmd.Flags()
		if flags.Changed("samples") {
			opts.NSamples = predictFlags.samples
		}
		if flags.Changed("seed") {
			opts.Seed = predictFlags.seed
		}
		if flags.Changed("ar-sample") {
			opts.ARSample = predictFlags.arSample
		}
		if flags.Changed("noiseless") {
			opts.Noiseless = predictFlags.noiseless
		}
		if flags.Changed("normalised") {
			opts.Normalised = predictFlags.normalised
		}
		res, err := svc.Predict(ctx, req, opts)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d dates, %d vars, mode %s, %d missing\n",
			res.RunID, len(res.Dates), len(res.Vars), res.Mode, res.Mean.Missing())
		return err
	})
}
