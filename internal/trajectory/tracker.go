// Package trajectory embeds each claim snapshot, measures semantic drift
// between consecutive snapshots, and records classified claim transitions.
package trajectory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"agora/internal/blackboard"
	"agora/internal/embedding"
	"agora/internal/llm"
	"agora/internal/logging"
	"agora/internal/store"
	"agora/internal/types"
)

// stagnationWindow is how many consecutive no-transition cycles raise the
// Cartographer's stagnation signal.
const stagnationWindow = 3

// Trigger identifies the accepted contribution credited with a transition:
// the one with the largest absolute support delta, ties broken by insertion
// order, "unknown" when the cycle accepted nothing.
type Trigger struct {
	Agent          string
	ContributionID int64
}

// UnknownTrigger is used when no accepted contribution exists.
var UnknownTrigger = Trigger{Agent: "unknown"}

// Tracker owns transition detection for one session.
type Tracker struct {
	engine    embedding.Engine
	client    llm.Client
	store     *store.Store
	threshold float64

	noTransitionStreak int
}

// NewTracker builds a tracker. threshold is the cosine-similarity cutoff
// below which a transition is recorded.
func NewTracker(engine embedding.Engine, client llm.Client, st *store.Store, threshold float64) *Tracker {
	if threshold <= 0 {
		threshold = 0.95
	}
	return &Tracker{
		engine:    engine,
		client:    client,
		store:     st,
		threshold: threshold,
	}
}

// Observe embeds the current claim, persists the cycle's trajectory point,
// and runs change detection against the immediately previous point. It
// returns the claim embedding and the recorded transition, if any.
func (t *Tracker) Observe(ctx context.Context, state blackboard.State, trigger Trigger) ([]float32, *types.ClaimTransition, error) {
	if state.CurrentClaim == "" {
		return nil, nil, nil
	}

	vec, err := t.engine.Embed(ctx, state.CurrentClaim)
	if err != nil {
		return nil, nil, types.NewError(types.KindTransport, "failed to embed claim", err)
	}

	prev, err := t.store.LatestTrajectoryPoint(state.ID, state.CycleCount)
	if err != nil {
		return vec, nil, err
	}

	point := types.TrajectoryPoint{
		BlackboardID:    state.ID,
		CycleNumber:     state.CycleCount,
		Embedding:       vec,
		ClaimText:       state.CurrentClaim,
		SupportStrength: state.SupportStrength,
	}
	if err := t.store.SaveTrajectoryPoint(point); err != nil {
		return vec, nil, err
	}

	if prev == nil {
		return vec, nil, nil
	}

	similarity, err := embedding.CosineSimilarity(prev.Embedding, vec)
	if err != nil {
		return vec, nil, types.NewError(types.KindInvariant, "embedding dimension drift between cycles", err)
	}
	logging.Trajectory("cycle %d->%d similarity %.4f (threshold %.2f)",
		prev.CycleNumber, state.CycleCount, similarity, t.threshold)

	if similarity >= t.threshold {
		t.noTransitionStreak++
		return vec, nil, nil
	}
	t.noTransitionStreak = 0

	transition := t.buildTransition(ctx, prev.ClaimText, state.CurrentClaim, prev.CycleNumber, state.CycleCount, state.ID, trigger)
	if _, err := t.store.SaveTransition(*transition); err != nil {
		return vec, nil, err
	}
	return vec, transition, nil
}

// ConsumeStagnation reports whether the last three consecutive cycles
// produced no transition. The signal resets on read: it drives a single
// Cartographer invocation.
func (t *Tracker) ConsumeStagnation() bool {
	if t.noTransitionStreak >= stagnationWindow {
		t.noTransitionStreak = 0
		return true
	}
	return false
}

// ReplayTransitions re-runs detection across every stored point pair.
// Insertion idempotence comes from the (blackboard_id, to_cycle) unique
// constraint, so a replay never duplicates rows.
func (t *Tracker) ReplayTransitions(ctx context.Context, blackboardID string) ([]types.ClaimTransition, error) {
	points, err := t.store.GetTrajectoryPoints(blackboardID)
	if err != nil {
		return nil, err
	}

	var recorded []types.ClaimTransition
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1], points[i]
		similarity, err := embedding.CosineSimilarity(prev.Embedding, cur.Embedding)
		if err != nil {
			continue
		}
		if similarity >= t.threshold {
			continue
		}
		transition := t.buildTransition(ctx, prev.ClaimText, cur.ClaimText, prev.CycleNumber, cur.CycleNumber, blackboardID, UnknownTrigger)
		if _, err := t.store.SaveTransition(*transition); err != nil {
			return nil, err
		}
		recorded = append(recorded, *transition)
	}
	return recorded, nil
}

func (t *Tracker) buildTransition(ctx context.Context, prevClaim, newClaim string, fromCycle, toCycle int, blackboardID string, trigger Trigger) *types.ClaimTransition {
	changeType := t.classifyChange(ctx, prevClaim, newClaim)
	additions, removals := t.semanticDiff(ctx, prevClaim, newClaim)

	return &types.ClaimTransition{
		BlackboardID:          blackboardID,
		FromCycle:             fromCycle,
		ToCycle:               toCycle,
		PreviousClaim:         prevClaim,
		NewClaim:              newClaim,
		TriggerAgent:          trigger.Agent,
		TriggerContributionID: trigger.ContributionID,
		ChangeType:            changeType,
		DiffAdditions:         additions,
		DiffRemovals:          removals,
	}
}

const classifyPrompt = `Two consecutive versions of a debated claim are given. Classify the change as exactly one of: refinement, pivot, expansion, contraction.
Answer with the single word only.

Previous: %q
New: %q`

// classifyChange is a forced four-way choice; unknown or failed output
// falls back to refinement.
func (t *Tracker) classifyChange(ctx context.Context, prevClaim, newClaim string) types.ChangeType {
	resp, err := t.client.ChatRandom(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(classifyPrompt, prevClaim, newClaim)},
	})
	if err != nil {
		logging.Trajectory("classification call failed: %v", err)
		return types.ChangeRefinement
	}

	word := strings.ToLower(strings.TrimSpace(resp.Content))
	if types.KnownChangeType(word) {
		return types.ChangeType(word)
	}
	logging.Trajectory("unknown change class %q, falling back to refinement", word)
	return types.ChangeRefinement
}

const diffPrompt = `Two consecutive versions of a debated claim are given. List the conceptual additions and removals between them.
Respond with JSON only: {"additions": [...], "removals": [...]}. At most 5 items per list, each 2-5 words.

Previous: %q
New: %q`

// semanticDiff returns bounded addition/removal lists; a failed call
// yields empty lists.
func (t *Tracker) semanticDiff(ctx context.Context, prevClaim, newClaim string) ([]string, []string) {
	resp, err := t.client.ChatRandom(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(diffPrompt, prevClaim, newClaim)},
	})
	if err != nil {
		logging.Trajectory("semantic diff call failed: %v", err)
		return nil, nil
	}

	var parsed struct {
		Additions []string `json:"additions"`
		Removals  []string `json:"removals"`
	}
	body := strings.TrimSpace(resp.Content)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		logging.Trajectory("semantic diff output unparseable: %v", err)
		return nil, nil
	}
	return bound(parsed.Additions, 5), bound(parsed.Removals, 5)
}

func bound(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
