package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"wall-navigation/wall_nav"
)

var historyLimit int

// historyCmd lists recorded rotation goals
var historyCmd = &cobra.Command{
	Use:   "history [goal-id]",
	Short: "List recorded rotation goals, or the transitions of one goal",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of goals to list.")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("%w: history.path must be set", wall_nav.ErrInvalidConfig)
	}
	history, err := wall_nav.OpenHistory(cfg.History.Path)
	if err != nil {
		return err
	}
	defer history.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if len(args) == 1 {
		return printTransitions(ctx, history, args[0])
	}

	goals, err := history.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	if isJSONOutput() {
		return printJSON(goals)
	}
	if len(goals) == 0 {
		fmt.Println("No rotation goals recorded")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Goal ID", "Angle", "Status", "Success", "Remaining", "Created", "Updated")
	for _, g := range goals {
		table.Append(
			g.GoalID,
			fmt.Sprintf("%.1f", g.Angle),
			string(g.Status),
			fmt.Sprintf("%t", g.Success),
			fmt.Sprintf("%.1f", g.RemainingDegrees),
			g.CreatedAt.Local().Format(time.DateTime),
			g.UpdatedAt.Local().Format(time.DateTime),
		)
	}
	table.Render()
	return nil
}

func printTransitions(ctx context.Context, history *wall_nav.History, id string) error {
	transitions, err := history.Transitions(ctx, id)
	if err != nil {
		return err
	}
	if len(transitions) == 0 {
		return fmt.Errorf("%w: %s", wall_nav.ErrGoalNotFound, id)
	}
	if isJSONOutput() {
		return printJSON(transitions)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("From", "To", "At")
	for _, tr := range transitions {
		table.Append(string(tr.From), string(tr.To), tr.At.Local().Format("2006-01-02 15:04:05.000"))
	}
	table.Render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
