package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gemrelay/gemrelay/pkg/config"
	"github.com/gemrelay/gemrelay/pkg/quota"
	"github.com/gemrelay/gemrelay/pkg/tracker"
)

func newQuotaCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect per-user generation quotas",
	}

	var userID string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show quota usage vs limits for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if !cfg.Quota.Enabled {
				fmt.Println("Quota enforcement is disabled.")
				return nil
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			statuses, err := quota.New(cfg.Quota.Policies, tr).Status(context.Background(), userID)
			if err != nil {
				return err
			}
			if len(statuses) == 0 {
				fmt.Println("No quota policies apply to this user.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "POLICY\tPERIOD\tMAX REQUESTS\tUSED\tREMAINING")
			for _, s := range statuses {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n",
					s.Policy.UserID, s.Policy.Period, s.Policy.MaxRequests, s.Used, s.Remaining)
			}
			return w.Flush()
		},
	}
	statusCmd.Flags().StringVarP(&userID, "user", "u", "", "LINE user ID")
	_ = statusCmd.MarkFlagRequired("user")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.AddCommand(statusCmd)
	return cmd
}
