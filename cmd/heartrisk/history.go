package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"heartrisk/db"
)

func historyCmd(a *app) *cobra.Command {
	var (
		limit       int
		asJSON      bool
		predictions bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent training runs or audited predictions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := db.Open(a.cfg.Database.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if predictions {
				logs, err := store.RecentPredictions(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return json.NewEncoder(out).Encode(logs)
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tREQUEST\tRUN\tLABEL\tP(DISEASE)")
				for _, p := range logs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.4f\n",
						p.CreatedAt.Format("2006-01-02 15:04:05"), p.RequestID, shortID(p.RunID), p.Label, p.P1)
				}
				return tw.Flush()
			}

			runs, err := store.RecentTrainingRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(out).Encode(runs)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TRAINED\tRUN\tMODEL\tTREES\tROWS\tTEST ACC\tF1")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.4f\t%.4f\n",
					r.TrainedAt.Format("2006-01-02 15:04:05"), shortID(r.RunID), r.ModelName,
					r.NEstimators, r.DataPoints, r.TestAccuracy, r.F1)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.Flags().BoolVar(&predictions, "predictions", false, "list audited predictions instead of training runs")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
