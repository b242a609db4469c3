package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func notifyCmd(e *env) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "notify-expiring",
		Short: "Email customers whose subscriptions end within the notification horizon",
		Long: `Email customers whose active subscriptions end within the notification horizon.
A subscription gets at most one email per day, so the command is safe to rerun.

Examples:
  subsctl notify-expiring
  subsctl notify-expiring --date 2026-05-10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			today := time.Now()
			if date != "" {
				parsed, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", date)
				}
				today = parsed
			}

			cfg, err := e.cfg()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			application, err := e.app(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			summary, runErr := application.Notifier.Run(cmd.Context(), today)
			if err := printJSON(e, summary); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to run for, YYYY-MM-DD (default today)")
	return cmd
}

func printJSON(e *env, v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
