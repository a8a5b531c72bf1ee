// Package main implements the run and resume CLI commands.
// This file handles launching a debate session and streaming its events.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agora/internal/events"
	"agora/internal/types"
)

var (
	runMaxCycles int
	runCostLimit float64
	runQuiet     bool
)

// runCmd starts a new debate session over a seed claim
var runCmd = &cobra.Command{
	Use:   "run [claim]",
	Short: "Run a debate session over a seed claim",
	Long: `Starts a new debate session seeded with the given claim and streams
cycle events until the session finishes.

Example:
  agora run "Compression is the essence of intelligence" --max-cycles 20`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDebate,
}

// resumeCmd resumes a persisted blackboard
var resumeCmd = &cobra.Command{
	Use:   "resume <blackboard-id>",
	Short: "Resume a persisted debate",
	Args:  cobra.ExactArgs(1),
	RunE:  resumeDebate,
}

func init() {
	runCmd.Flags().IntVar(&runMaxCycles, "max-cycles", 0, "override session.max_cycles")
	runCmd.Flags().Float64Var(&runCostLimit, "cost-limit", 0, "override session.cost_limit_usd")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "suppress per-cycle output")
	resumeCmd.Flags().IntVar(&runMaxCycles, "max-cycles", 0, "override session.max_cycles")
	resumeCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "suppress per-cycle output")
}

func runDebate(cmd *cobra.Command, args []string) error {
	claim := strings.Join(args, " ")

	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.Close()
	applyRunOverrides(eng)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionID, err := eng.supervisor.Start(ctx, claim)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	logger.Info("Session started", zap.String("session", sessionID))

	return watchSession(ctx, eng, sessionID)
}

func resumeDebate(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.Close()
	applyRunOverrides(eng)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionID, err := eng.supervisor.Resume(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to resume session: %w", err)
	}
	logger.Info("Session resumed", zap.String("session", sessionID), zap.String("blackboard", args[0]))

	return watchSession(ctx, eng, sessionID)
}

func applyRunOverrides(eng *engine) {
	if runMaxCycles > 0 {
		eng.cfg.Session.MaxCycles = runMaxCycles
	}
	if runCostLimit > 0 {
		eng.cfg.Session.CostLimitUSD = runCostLimit
	}
}

// watchSession streams events for a session until it completes or stops,
// then prints the final blackboard summary.
func watchSession(ctx context.Context, eng *engine, sessionID string) error {
	ch, cancel := eng.bus.Subscribe(events.SessionTopic(sessionID))
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			// Interrupt: ask the supervisor to wind the session down.
			if err := eng.supervisor.Stop(sessionID); err != nil {
				logger.Warn("stop failed", zap.Error(err))
			}
			printFinal(eng, sessionID)
			return nil
		case evt, ok := <-ch:
			if !ok {
				printFinal(eng, sessionID)
				return nil
			}
			if !runQuiet {
				printEvent(evt)
			}
			if evt.Type == events.EventSessionCompleted || evt.Type == events.EventSessionStopped {
				printFinal(eng, sessionID)
				return nil
			}
		}
	}
}

func printEvent(evt events.Event) {
	switch evt.Type {
	case events.EventCycleComplete:
		fmt.Printf("cycle %v: support %.3f (accepted %v)\n",
			evt.Data["cycle"], asFloat(evt.Data["support"]), evt.Data["accepted"])
	case events.EventClaimUpdated:
		color.Cyan("cycle %v: claim shifted (%v)", evt.Data["cycle"], evt.Data["change_type"])
	case events.EventClaimGraduated:
		color.Green("cycle %v: claim graduated", evt.Data["cycle"])
	case events.EventClaimDied:
		color.Red("cycle %v: claim died", evt.Data["cycle"])
	}
}

func printFinal(eng *engine, sessionID string) {
	info, err := eng.supervisor.Info(sessionID)
	if err != nil {
		return
	}

	fmt.Println()
	fmt.Printf("Session:    %s (%s)\n", info.SessionID, info.Status)
	fmt.Printf("Blackboard: %s\n", info.BlackboardID)
	fmt.Printf("Cycles:     %d\n", info.CycleCount)
	fmt.Printf("Support:    %.3f\n", info.Support)
	if info.Claim != "" {
		fmt.Printf("Claim:      %s\n", info.Claim)
	} else {
		fmt.Println("Claim:      (resolved)")
	}
	if info.Status == types.SessionStopped && info.LastError != "" {
		color.Red("Error:      %s", info.LastError)
	}

	if cost, err := eng.store.TotalCost(info.BlackboardID); err == nil && cost > 0 {
		fmt.Printf("Cost:       $%.4f\n", cost)
	}
}

func asFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}
