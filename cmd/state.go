package cmd

import (
	"context"

	"github.com/brensch/gdcmatrix/internal/db"

	"github.com/spf13/cobra"
)

var (
	stateLimit       int
	stateFilterEvent string
	stateFilterGroup string
)

// stateCmd shows the per-sample event log.
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "View the sample event log from previous runs",
	Long: `Queries the DuckDB event log and displays recent per-sample events.
The log is diagnostic only; it records what happened during runs but is
never used to skip work. Use flags to filter by event type or group and to
limit the output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		logger.Info("Querying sample event log",
			"event_filter", stateFilterEvent, "group_filter", stateFilterGroup, "limit", stateLimit)

		if err := db.DisplayHistory(context.Background(), getDB(), stateFilterEvent, stateFilterGroup, stateLimit); err != nil {
			logger.Error("Failed to display event log", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	stateCmd.Flags().IntVarP(&stateLimit, "limit", "n", 50, "Limit the number of log records displayed")
	stateCmd.Flags().StringVarP(&stateFilterEvent, "event", "e", "", "Filter records by event type (e.g. sample_done, sample_failed, group_done)")
	stateCmd.Flags().StringVarP(&stateFilterGroup, "group", "g", "", "Filter records by group (tumor or normal)")
}
