// Package runner drives the debate loop: a fixed-phase state machine that
// reads the blackboard, dispatches the cycle's agent roster in parallel,
// arbitrates the results, applies the accepted deltas in order, perturbs,
// tracks the claim trajectory, persists, and emits events.
package runner

import (
	"context"
	"math"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"agora/internal/agents"
	"agora/internal/arbiter"
	"agora/internal/blackboard"
	"agora/internal/config"
	"agora/internal/events"
	"agora/internal/logging"
	"agora/internal/store"
	"agora/internal/trajectory"
	"agora/internal/types"
)

// Phase is one state of the cycle state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRead
	PhaseWrite
	PhaseArbiter
	PhaseApply
	PhasePerturb
	PhaseTrajectory
	PhasePersist
	PhaseEmit
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseRead:
		return "READ"
	case PhaseWrite:
		return "WRITE"
	case PhaseArbiter:
		return "ARBITER"
	case PhaseApply:
		return "APPLY"
	case PhasePerturb:
		return "PERTURB"
	case PhaseTrajectory:
		return "TRAJECTORY"
	case PhasePersist:
		return "PERSIST"
	case PhaseEmit:
		return "EMIT"
	}
	return "UNKNOWN"
}

// StopReason says why a session's run loop ended.
type StopReason string

const (
	StopMaxCycles     StopReason = "max_cycles_reached"
	StopClaimResolved StopReason = "claim_resolved"
	StopCostLimit     StopReason = "cost_limit_exceeded"
	StopRequested     StopReason = "stop_requested"
)

// minAgentTimeout is the floor on the per-agent call deadline regardless of
// roster size.
const minAgentTimeout = 30 * time.Second

// decayRole labels the implicit passive-decay contribution row.
const decayRole = types.Role("decay")

// Gate is called at every phase boundary. It blocks while the session is
// paused and returns an error to abort the run.
type Gate func(ctx context.Context) error

// Options wires a runner.
type Options struct {
	SessionID   string
	Board       *blackboard.Blackboard
	Dispatcher  *agents.Dispatcher
	Store       *store.Store
	Tracker     *trajectory.Tracker
	Bus         *events.Bus
	Session     config.SessionConfig
	CycleBudget time.Duration
	Gate        Gate

	// Seed fixes the perturbation/frontier RNG; 0 falls back to wall time.
	Seed int64
}

// Runner owns one session's debate loop. It is the blackboard's single
// writer.
type Runner struct {
	sessionID  string
	board      *blackboard.Blackboard
	dispatcher *agents.Dispatcher
	store      *store.Store
	tracker    *trajectory.Tracker
	bus        *events.Bus
	session    config.SessionConfig
	budget     time.Duration
	gate       Gate
	rng        *rand.Rand

	lastActivationCycle int
	lastActivatedSeed   string
}

// New builds a runner from options.
func New(opts Options) *Runner {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	budget := opts.CycleBudget
	if budget <= 0 {
		budget = 300 * time.Second
	}
	return &Runner{
		sessionID:           opts.SessionID,
		board:               opts.Board,
		dispatcher:          opts.Dispatcher,
		store:               opts.Store,
		tracker:             opts.Tracker,
		bus:                 opts.Bus,
		session:             opts.Session,
		budget:              budget,
		gate:                opts.Gate,
		rng:                 rand.New(rand.NewSource(seed)),
		lastActivationCycle: -1,
	}
}

// CycleReport is the outcome record of one completed cycle.
type CycleReport struct {
	Cycle      int
	Roster     []types.Role
	Accepted   int
	Applied    int
	Support    float64
	Died       bool
	Graduated  bool
	Perturbed  bool
	Duration   time.Duration
	Transition *types.ClaimTransition
}

// appliedContribution tracks an accepted contribution whose delta landed,
// for transition trigger attribution.
type appliedContribution struct {
	id    int64
	role  types.Role
	delta float64
}

// Run executes cycles until a stop condition fires. The cost check runs at
// the top of every cycle so an overrun mid-cycle still finishes that cycle.
func (r *Runner) Run(ctx context.Context) (StopReason, error) {
	for {
		if err := r.throughGate(ctx); err != nil {
			return StopRequested, nil
		}
		if r.board.CostExceeded() {
			logging.Session("session %s stopping: cost limit reached", r.sessionID)
			return StopCostLimit, nil
		}
		if !r.board.HasClaim() {
			return StopClaimResolved, nil
		}
		if r.board.CycleCount() >= r.session.MaxCycles {
			return StopMaxCycles, nil
		}

		started := time.Now()
		if _, err := r.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return StopRequested, nil
			}
			return StopRequested, err
		}

		// Timed mode waits out the remainder of the cycle budget; event-driven
		// mode rolls straight into the next cycle.
		if r.session.CycleMode == "timed" {
			if remaining := r.budget - time.Since(started); remaining > 0 {
				select {
				case <-ctx.Done():
					return StopRequested, nil
				case <-time.After(remaining):
				}
			}
		}
	}
}

// RunCycle executes one full pass of the state machine and returns the
// cycle report.
func (r *Runner) RunCycle(ctx context.Context) (CycleReport, error) {
	var (
		report   CycleReport
		snapshot blackboard.State
		roster   []types.Role
		results  []types.AgentResult
		costs    []*types.LLMCost
		accepted []types.AgentResult
		applied  []appliedContribution
		fw       string
	)

	cycleCtx, cancel := context.WithTimeout(ctx, r.budget)
	defer cancel()

	cycleStart := time.Now()
	for phase := PhaseRead; phase != PhaseIdle; {
		if err := r.throughGate(ctx); err != nil {
			return report, err
		}
		logging.CycleDebug("session %s entering %s", r.sessionID, phase)

		switch phase {
		case PhaseRead:
			cycle := r.board.IncrementCycle()
			snapshot = r.board.GetState()
			roster = selectRoster(rosterInput{
				Cycle:             cycle,
				Support:           snapshot.SupportStrength,
				Stagnated:         r.tracker.ConsumeStagnation(),
				RecentlyActivated: r.lastActivationCycle >= 0 && cycle-r.lastActivationCycle <= 1,
			})
			report.Cycle = cycle
			report.Roster = roster
			if containsRole(roster, types.RoleTranslator) {
				fw = r.board.NextTranslatorFramework()
			}
			logging.Cycle("session %s cycle %d: roster %v", r.sessionID, cycle, roster)
			r.bus.Publish(events.SessionTopic(r.sessionID), events.EventCycleStarted, map[string]interface{}{
				"session_id": r.sessionID,
				"cycle":      cycle,
			})
			phase = PhaseWrite

		case PhaseWrite:
			results, costs = r.writePhase(cycleCtx, roster, snapshot, fw)
			phase = PhaseArbiter

		case PhaseArbiter:
			accepted = arbiter.Evaluate(results, snapshot)
			report.Accepted = len(accepted)
			phase = PhaseApply

		case PhaseApply:
			applied = r.applyPhase(&report, results, accepted, costs)
			phase = PhasePerturb

		case PhasePerturb:
			report.Perturbed = r.perturbPhase(report.Cycle)
			phase = PhaseTrajectory

		case PhaseTrajectory:
			if err := r.trajectoryPhase(cycleCtx, &report, applied); err != nil {
				return report, err
			}
			phase = PhasePersist

		case PhasePersist:
			state := r.board.GetState()
			if err := r.store.SaveBlackboard(state); err != nil {
				logging.StoreError("cycle %d blackboard save failed: %v", report.Cycle, err)
			}
			if err := r.store.SaveSnapshot(state); err != nil {
				logging.StoreError("cycle %d snapshot save failed: %v", report.Cycle, err)
			}
			phase = PhaseEmit

		case PhaseEmit:
			report.Duration = time.Since(cycleStart)
			r.emitPhase(report)
			phase = PhaseIdle
		}
	}

	return report, ctx.Err()
}

// writePhase fans the roster out in parallel. Every agent gets an equal
// slice of the cycle budget, floored so a large roster cannot starve
// individual calls. A failed agent surfaces as an error result, never as a
// phase failure.
func (r *Runner) writePhase(ctx context.Context, roster []types.Role, snapshot blackboard.State, framework string) ([]types.AgentResult, []*types.LLMCost) {
	perAgent := r.budget / time.Duration(len(roster))
	if perAgent < minAgentTimeout {
		perAgent = minAgentTimeout
	}

	results := make([]types.AgentResult, len(roster))
	costs := make([]*types.LLMCost, len(roster))

	g, gctx := errgroup.WithContext(ctx)
	for i, role := range roster {
		i, role := i, role
		g.Go(func() error {
			pctx := agents.PromptContext{State: snapshot}
			switch role {
			case types.RoleTranslator:
				pctx.Framework = framework
			case types.RolePerturber:
				pctx.PerturbationSeed = r.lastActivatedSeed
			}

			callCtx, cancel := context.WithTimeout(gctx, perAgent)
			defer cancel()
			results[i], costs[i] = r.dispatcher.Dispatch(callCtx, role, pctx)
			return nil
		})
	}
	g.Wait()
	return results, costs
}

// applyPhase persists every contribution and applies the accepted deltas in
// arbiter order. Passive decay lands first as an implicit contribution.
// After a death or graduation the remaining accepted rows still persist,
// but their deltas no longer apply.
func (r *Runner) applyPhase(report *CycleReport, results, accepted []types.AgentResult, costs []*types.LLMCost) []appliedContribution {
	boardID := r.board.ID()

	for _, c := range costs {
		if c == nil {
			continue
		}
		c.BlackboardID = boardID
		if err := r.store.SaveLLMCost(*c); err != nil {
			logging.StoreError("cost row save failed: %v", err)
		}
		r.board.AddCost(c.CostUSD)
	}

	// Sponsorship rides on the agent's output, not on arbitration: a vetoed
	// Explorer still seeds the frontier pool.
	for _, res := range results {
		if res.Output == nil || !res.Output.Valid {
			continue
		}
		for _, idea := range res.Output.SponsoredIdeas {
			if idea != "" {
				r.board.AddFrontierIdea(idea, string(res.Role))
			}
		}
	}

	halted := false

	if decay := r.session.DecayRate; decay > 0 {
		if _, err := r.store.SaveContribution(types.Contribution{
			BlackboardID: boardID,
			CycleNumber:  report.Cycle,
			AgentRole:    decayRole,
			Accepted:     true,
			SupportDelta: -decay,
		}); err != nil {
			logging.StoreError("decay contribution save failed: %v", err)
		}
		_, support, outcome := r.board.UpdateSupport(-decay)
		report.Support = support
		if outcome == blackboard.SupportDied {
			report.Died = true
			halted = true
		}
	}

	acceptedSet := make(map[*types.AgentOutput]bool, len(accepted))
	for _, a := range accepted {
		acceptedSet[a.Output] = true
	}

	var applied []appliedContribution
	for _, res := range accepted {
		if !halted {
			r.applySideEffects(report.Cycle, res)
		}

		id, err := r.store.SaveContribution(types.Contribution{
			BlackboardID: boardID,
			CycleNumber:  report.Cycle,
			AgentRole:    res.Role,
			ModelUsed:    res.Model,
			InputPrompt:  res.Prompt,
			OutputText:   res.Output.Raw,
			Accepted:     true,
			SupportDelta: res.Delta,
		})
		if err != nil {
			logging.StoreError("contribution save failed for %s: %v", res.Role, err)
			continue
		}

		if halted {
			continue
		}
		_, support, outcome := r.board.UpdateSupport(res.Delta)
		report.Support = support
		applied = append(applied, appliedContribution{id: id, role: res.Role, delta: res.Delta})
		report.Applied++
		switch outcome {
		case blackboard.SupportDied:
			report.Died = true
			halted = true
		case blackboard.SupportGraduated:
			report.Graduated = true
			halted = true
		}
	}

	// Rejected and failed calls are part of the record too.
	for _, res := range results {
		if res.Output != nil && acceptedSet[res.Output] {
			continue
		}
		text := ""
		delta := 0.0
		if res.Output != nil {
			text = res.Output.Raw
			delta = res.Delta
		} else if res.Err != nil {
			text = res.Err.Error()
		}
		if _, err := r.store.SaveContribution(types.Contribution{
			BlackboardID: boardID,
			CycleNumber:  report.Cycle,
			AgentRole:    res.Role,
			ModelUsed:    res.Model,
			InputPrompt:  res.Prompt,
			OutputText:   text,
			Accepted:     false,
			SupportDelta: delta,
		}); err != nil {
			logging.StoreError("rejected contribution save failed for %s: %v", res.Role, err)
		}
	}

	report.Support = r.board.Support()
	return applied
}

// applySideEffects lands a contribution's non-delta mutations.
func (r *Runner) applySideEffects(cycle int, res types.AgentResult) {
	out := res.Output
	switch res.Role {
	case types.RoleExplorer:
		if out.NewClaim != "" {
			r.board.UpdateClaim(out.NewClaim)
		}
	case types.RoleCritic:
		r.board.SetActiveObjection(out.Objection)
	case types.RoleConnector:
		r.board.SetAnalogy(out.Analogy)
	case types.RoleTranslator:
		if out.Framework != "" {
			r.board.RecordTranslatorFramework(out.Framework)
		}
	case types.RoleSummarizer:
		r.saveSummary(cycle, out)
	}
}

// saveSummary persists the Summarizer narrative, debounced by the configured
// minimum cycle gap.
func (r *Runner) saveSummary(cycle int, out *types.AgentOutput) {
	if gap := r.session.SummarizerDebounceCycles; gap > 0 {
		last, err := r.store.LatestSummaryCycle(r.board.ID())
		if err != nil {
			logging.StoreError("summary debounce lookup failed: %v", err)
			return
		}
		if last >= 0 && cycle-last < gap {
			logging.CycleDebug("summary debounced at cycle %d (last %d)", cycle, last)
			return
		}
	}
	if err := r.store.SaveSummary(types.ClaimSummary{
		BlackboardID:        r.board.ID(),
		CycleNumber:         cycle,
		Context:             out.Context,
		Evolution:           out.Evolution,
		AddressedObjections: out.AddressedObjections,
		RemainingGaps:       out.RemainingGaps,
	}); err != nil {
		logging.StoreError("summary save failed: %v", err)
	}
}

// perturbPhase ages the objection and the frontier pool, then decides
// whether to activate a frontier idea: by dice roll at the configured
// probability, or forced when the active objection has gone stale for three
// cycles.
func (r *Runner) perturbPhase(cycle int) bool {
	streak := r.board.AgeObjection()
	r.board.AgeFrontiers()

	forced := streak >= 3
	if !forced && r.rng.Float64() >= r.session.PerturbationProbability {
		return false
	}

	idea := r.board.SelectWeightedFrontier(r.rng)
	if idea == nil {
		return false
	}
	if err := r.board.ActivateFrontier(idea.ID); err != nil {
		logging.Frontier("activation failed: %v", err)
		return false
	}
	r.lastActivationCycle = cycle
	r.lastActivatedSeed = idea.IdeaText
	logging.Cycle("cycle %d perturbation: activated %s (forced=%v)", cycle, idea.ID[:8], forced)
	return true
}

// trajectoryPhase records the cycle's trajectory point and any detected
// transition. The trigger is the applied contribution with the largest
// absolute delta, earliest wins ties. Only session-aborting errors
// propagate; everything else is logged and retried next cycle.
func (r *Runner) trajectoryPhase(ctx context.Context, report *CycleReport, applied []appliedContribution) error {
	state := r.board.GetState()
	if state.CurrentClaim == "" {
		return nil
	}

	trigger := trajectory.UnknownTrigger
	best := -1.0
	for _, a := range applied {
		if mag := math.Abs(a.delta); mag > best {
			best = mag
			trigger = trajectory.Trigger{Agent: string(a.role), ContributionID: a.id}
		}
	}

	vec, transition, err := r.tracker.Observe(ctx, state, trigger)
	if err != nil {
		if types.AbortsSession(err) {
			return err
		}
		logging.Trajectory("cycle %d trajectory failed: %v", report.Cycle, err)
		return nil
	}
	if vec != nil {
		r.board.SetEmbedding(vec)
	}
	report.Transition = transition
	return nil
}

// emitPhase publishes the cycle's events on the session topic and mirrors
// lifecycle-relevant ones on the global sessions topic.
func (r *Runner) emitPhase(report CycleReport) {
	topic := events.SessionTopic(r.sessionID)
	state := r.board.GetState()

	data := map[string]interface{}{
		"session_id":    r.sessionID,
		"blackboard_id": state.ID,
		"cycle":         report.Cycle,
		"support":       report.Support,
		"accepted":      report.Accepted,
		"applied":       report.Applied,
		"claim":         state.CurrentClaim,
		"duration_ms":   report.Duration.Milliseconds(),
	}

	r.bus.Publish(topic, events.EventSupportUpdated, map[string]interface{}{
		"session_id": r.sessionID,
		"cycle":      report.Cycle,
		"support":    report.Support,
	})
	if report.Transition != nil {
		r.bus.Publish(topic, events.EventClaimUpdated, map[string]interface{}{
			"session_id":  r.sessionID,
			"cycle":       report.Cycle,
			"change_type": string(report.Transition.ChangeType),
			"claim":       state.CurrentClaim,
		})
	}
	if report.Died {
		r.bus.Publish(topic, events.EventClaimDied, data)
		r.bus.Publish(events.TopicSessions, events.EventClaimDied, data)
	}
	if report.Graduated {
		r.bus.Publish(topic, events.EventClaimGraduated, data)
		r.bus.Publish(events.TopicSessions, events.EventClaimGraduated, data)
	}
	r.bus.Publish(topic, events.EventBlackboardUpdate, data)
	// Cycle completion goes to the global topic too so fleet observers do
	// not need a per-session subscription.
	r.bus.Publish(topic, events.EventCycleComplete, data)
	r.bus.Publish(events.TopicSessions, events.EventCycleComplete, data)
}

func (r *Runner) throughGate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.gate != nil {
		return r.gate(ctx)
	}
	return nil
}

func containsRole(roster []types.Role, role types.Role) bool {
	for _, r := range roster {
		if r == role {
			return true
		}
	}
	return false
}
