package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fieldcast/app"
	"github.com/kilianp07/fieldcast/config"
	"github.com/kilianp07/fieldcast/core/container"
	"github.com/kilianp07/fieldcast/core/task"
	"github.com/kilianp07/fieldcast/pkg/taskfile"
)

var placeFlags struct {
	tasks      string
	task       int
	n          int
	contextSet int
}

var placeCmd = &cobra.Command{
	Use:   "place",
	Short: "Pick new observation sites among the task file locations",
	Long: "Greedily picks the candidate locations that most reduce the mean " +
		"predictive spread over the targets of one task. Candidates are the " +
		"locations of the task file, in model space.",
	RunE: runPlace,
}

func init() {
	f := placeCmd.Flags()
	f.StringVarP(&placeFlags.tasks, "tasks", "t", "tasks.yaml", "task file (yaml or json)")
	f.IntVar(&placeFlags.task, "task", 0, "index of the task to place for")
	f.IntVarP(&placeFlags.n, "count", "n", 1, "number of sites to pick")
	f.IntVar(&placeFlags.contextSet, "context-set", 0, "context set receiving the new observations")
	rootCmd.AddCommand(placeCmd)
}

func candidates(locs container.Locations) (*mat.Dense, error) {
	switch l := locs.(type) {
	case *container.Index:
		return l.Coords()
	case *container.Grid:
		return task.Grid(l.Axes[0], l.Axes[1]).Points()
	}
	return nil, fmt.Errorf("no candidate locations in task file")
}

func runPlace(cmd *cobra.Command, _ []string) error {
	req, err := taskfile.Load(placeFlags.tasks)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	if placeFlags.task < 0 || placeFlags.task >= len(req.Tasks) {
		return fmt.Errorf("task %d out of range [0, %d)", placeFlags.task, len(req.Tasks))
	}
	cands, err := candidates(req.Locations)
	if err != nil {
		return err
	}
	return withService(cmd, func(ctx context.Context, _ *config.Config, svc *app.Service) error {
		p, err := svc.Place(ctx, req.Tasks[placeFlags.task], cands, placeFlags.n, placeFlags.contextSet)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i, idx := range p.Indices {
			if _, err := fmt.Fprintf(out, "%d\t%g\t%g\t%g\n", idx, cands.At(0, idx), cands.At(1, idx), p.Scores[i]); err != nil {
				return err
			}
		}
		return nil
	})
}
