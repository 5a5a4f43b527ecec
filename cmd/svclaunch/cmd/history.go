package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	historyLimit     int
	historyOlderThan time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history [service]",
	Short: "List past launches",
	Long: `History lists launches recorded by 'svclaunch start', newest first.
Exits are recorded when the launcher is still running to observe them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old launch records",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPrune,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyPruneCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of launches to show (0 = all)")
	historyPruneCmd.Flags().DurationVar(&historyOlderThan, "older-than", 30*24*time.Hour, "delete launches started before this age")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if !cfg.History.Enabled {
		return fmt.Errorf("launch history is disabled (history.enabled=false)")
	}
	history, err := openHistory()
	if err != nil {
		return err
	}
	defer history.Close()

	launches, err := history.ListLaunches(serviceArg(args), historyLimit)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(cmd.OutOrStdout(), launches)
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Launch", "Service", "PID", "Started", "Ended", "Exit", "Reason")
	for _, l := range launches {
		ended, exit := "-", "-"
		if l.EndedAt != nil {
			ended = l.EndedAt.Local().Format(time.DateTime)
		}
		if l.ExitCode != nil {
			exit = strconv.Itoa(*l.ExitCode)
		}
		reason := l.ExitReason
		if reason == "" {
			reason = "-"
		}
		id := l.ID
		if len(id) > 8 {
			id = id[:8]
		}
		table.Append([]string{id, l.Service, strconv.Itoa(l.PID), l.StartedAt.Local().Format(time.DateTime), ended, exit, reason})
	}
	return table.Render()
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	if !cfg.History.Enabled {
		return fmt.Errorf("launch history is disabled (history.enabled=false)")
	}
	history, err := openHistory()
	if err != nil {
		return err
	}
	defer history.Close()

	n, err := history.Prune(time.Now().Add(-historyOlderThan))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d launch records older than %s\n", n, historyOlderThan)
	return nil
}
