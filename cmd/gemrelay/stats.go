package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gemrelay/gemrelay/pkg/config"
	"github.com/gemrelay/gemrelay/pkg/tracker"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		engine     string
		recent     int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show generation usage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer tr.Close()

			ctx := context.Background()

			if recent > 0 {
				records, err := tr.Recent(ctx, recent)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Println("No usage data found.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tUSER\tENGINE\tMODEL\tMODE\tCACHED\tOK\tLATENCY")
				for _, r := range records {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%t\t%dms\n",
						r.CreatedAt.Format("2006-01-02T15:04:05"), r.UserID, r.Engine, r.Model, r.Mode, r.Cached, r.Success, r.LatencyMs)
				}
				return w.Flush()
			}

			summaries, err := tr.Summary(ctx, engine)
			if err != nil {
				return err
			}

			if len(summaries) == 0 {
				fmt.Println("No usage data found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ENGINE\tMODE\tREQUESTS\tCACHED\tFAILED\tAVG LATENCY")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%.0fms\n",
					s.Engine, s.Mode, s.RequestCount, s.CachedCount, s.FailedCount, s.AvgLatencyMs)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&engine, "engine", "", "filter by engine")
	cmd.Flags().IntVar(&recent, "recent", 0, "list the N most recent generations instead of the summary")
	return cmd
}
