// Package main implements session inspection CLI commands.
// This file handles listing persisted debates and showing their history.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// sessionsCmd lists persisted debates
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List persisted debates",
	Long:  `Lists every persisted blackboard, most recently updated first.`,
	RunE:  runSessionsList,
}

// historyCmd shows a debate's transition and cemetery record
var historyCmd = &cobra.Command{
	Use:   "history <blackboard-id>",
	Short: "Show a debate's claim transitions and cemetery",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	boards, err := eng.store.ListBlackboards()
	if err != nil {
		return fmt.Errorf("failed to list debates: %w", err)
	}
	if len(boards) == 0 {
		fmt.Println("No persisted debates found.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "CLAIM", "SUPPORT", "CYCLES", "UPDATED")
	for _, b := range boards {
		table.Append([]string{
			b.ID,
			ellipsize(b.CurrentClaim, 60),
			fmt.Sprintf("%.3f", b.Support),
			fmt.Sprintf("%d", b.CycleCount),
			b.UpdatedAt,
		})
	}
	return table.Render()
}

func runHistory(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	boardID := args[0]
	state, err := eng.store.LoadBlackboard(boardID)
	if err != nil {
		return err
	}

	fmt.Printf("Blackboard %s, cycle %d, support %.3f\n\n", state.ID, state.CycleCount, state.SupportStrength)

	transitions, err := eng.store.GetTransitions(boardID)
	if err != nil {
		return err
	}
	if len(transitions) == 0 {
		fmt.Println("No claim transitions recorded.")
	}
	for _, t := range transitions {
		color.Cyan("cycle %d -> %d: %s (trigger: %s)", t.FromCycle, t.ToCycle, t.ChangeType, t.TriggerAgent)
		fmt.Printf("  from: %s\n", ellipsize(t.PreviousClaim, 100))
		fmt.Printf("  to:   %s\n", ellipsize(t.NewClaim, 100))
		if len(t.DiffAdditions) > 0 {
			fmt.Printf("  + %s\n", strings.Join(t.DiffAdditions, "; "))
		}
		if len(t.DiffRemovals) > 0 {
			fmt.Printf("  - %s\n", strings.Join(t.DiffRemovals, "; "))
		}
	}

	if len(state.Cemetery) > 0 {
		fmt.Println()
		color.Red("Cemetery:")
		for _, e := range state.Cemetery {
			fmt.Printf("  cycle %d (%.3f): %s (%s)\n",
				e.CycleKilled, e.FinalSupport, ellipsize(e.Claim, 80), e.CauseOfDeath)
		}
	}
	if len(state.GraduatedClaims) > 0 {
		fmt.Println()
		color.Green("Graduated:")
		for _, g := range state.GraduatedClaims {
			fmt.Printf("  cycle %d (%.3f): %s\n",
				g.CycleGraduated, g.FinalSupport, ellipsize(g.Claim, 80))
		}
	}
	return nil
}

func ellipsize(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
