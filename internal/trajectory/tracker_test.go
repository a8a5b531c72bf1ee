package trajectory

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"agora/internal/blackboard"
	"agora/internal/llm"
	"agora/internal/store"
	"agora/internal/types"
)

// fakeEngine returns a fixed vector per claim text.
type fakeEngine struct {
	vectors map[string][]float32
}

func (f *fakeEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	v, ok := f.vectors[text]
	if !ok {
		return []float32{1, 0, 0}, nil
	}
	return v, nil
}

func (f *fakeEngine) Dimensions() int { return 3 }
func (f *fakeEngine) Name() string    { return "fake" }

// fakeClient answers classification calls with a fixed word and diff calls
// with fixed JSON, keyed on prompt content.
type fakeClient struct {
	classifyAs string
	diffJSON   string
	calls      int
}

func (f *fakeClient) Chat(ctx context.Context, model string, messages []llm.Message) (*llm.ChatResponse, error) {
	return f.ChatRandom(ctx, messages)
}

func (f *fakeClient) ChatRandom(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error) {
	f.calls++
	prompt := messages[len(messages)-1].Content
	content := f.classifyAs
	if strings.Contains(prompt, "additions") {
		content = f.diffJSON
	}
	return &llm.ChatResponse{Content: content, Model: "fake-model"}, nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "agora.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedBoard(t *testing.T, s *store.Store, claim string) blackboard.State {
	t.Helper()
	b := blackboard.New(claim, 0)
	b.IncrementCycle()
	state := b.GetState()
	if err := s.SaveBlackboard(state); err != nil {
		t.Fatalf("failed to save blackboard: %v", err)
	}
	return state
}

func TestObserveFirstPointRecordsNoTransition(t *testing.T) {
	s := openTestStore(t)
	state := seedBoard(t, s, "the first claim text")

	tracker := NewTracker(&fakeEngine{}, &fakeClient{}, s, 0.95)
	vec, transition, err := tracker.Observe(context.Background(), state, UnknownTrigger)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if vec == nil {
		t.Error("expected an embedding")
	}
	if transition != nil {
		t.Errorf("first point must not produce a transition, got %+v", transition)
	}
}

func TestObserveDetectsTransitionBelowThreshold(t *testing.T) {
	s := openTestStore(t)

	engine := &fakeEngine{vectors: map[string][]float32{
		// cosine 0.80, below the 0.95 threshold
		"claim version one": {1, 0, 0},
		"claim version two": {0.8, 0.6, 0},
	}}
	client := &fakeClient{
		classifyAs: "pivot",
		diffJSON:   `{"additions": ["embodiment premise"], "removals": ["pure computation"]}`,
	}
	tracker := NewTracker(engine, client, s, 0.95)

	stateOne := seedBoard(t, s, "claim version one")
	if _, _, err := tracker.Observe(context.Background(), stateOne, UnknownTrigger); err != nil {
		t.Fatalf("first observe: %v", err)
	}

	stateTwo := stateOne
	stateTwo.CurrentClaim = "claim version two"
	stateTwo.CycleCount = 2
	trigger := Trigger{Agent: "explorer", ContributionID: 7}

	_, transition, err := tracker.Observe(context.Background(), stateTwo, trigger)
	if err != nil {
		t.Fatalf("second observe: %v", err)
	}
	if transition == nil {
		t.Fatal("expected a transition at cosine 0.80")
	}
	if transition.ChangeType != types.ChangePivot {
		t.Errorf("expected pivot, got %s", transition.ChangeType)
	}
	if transition.FromCycle != 1 || transition.ToCycle != 2 {
		t.Errorf("unexpected cycle span %d -> %d", transition.FromCycle, transition.ToCycle)
	}
	if transition.TriggerAgent != "explorer" || transition.TriggerContributionID != 7 {
		t.Errorf("trigger not attributed: %+v", transition)
	}
	if len(transition.DiffAdditions) != 1 || transition.DiffAdditions[0] != "embodiment premise" {
		t.Errorf("unexpected additions: %v", transition.DiffAdditions)
	}

	persisted, err := s.GetTransitions(stateOne.ID)
	if err != nil {
		t.Fatalf("get transitions: %v", err)
	}
	if len(persisted) != 1 {
		t.Errorf("expected 1 persisted transition, got %d", len(persisted))
	}
}

func TestObserveNoTransitionAboveThreshold(t *testing.T) {
	s := openTestStore(t)

	engine := &fakeEngine{vectors: map[string][]float32{
		"stable claim a": {1, 0, 0},
		"stable claim b": {0.999, 0.04, 0}, // cosine ~0.999
	}}
	tracker := NewTracker(engine, &fakeClient{classifyAs: "refinement"}, s, 0.95)

	state := seedBoard(t, s, "stable claim a")
	if _, _, err := tracker.Observe(context.Background(), state, UnknownTrigger); err != nil {
		t.Fatalf("first observe: %v", err)
	}

	next := state
	next.CurrentClaim = "stable claim b"
	next.CycleCount = 2
	_, transition, err := tracker.Observe(context.Background(), next, UnknownTrigger)
	if err != nil {
		t.Fatalf("second observe: %v", err)
	}
	if transition != nil {
		t.Errorf("expected no transition at cosine ~0.999, got %+v", transition)
	}
}

func TestUnknownClassificationFallsBackToRefinement(t *testing.T) {
	s := openTestStore(t)

	engine := &fakeEngine{vectors: map[string][]float32{
		"claim version one": {1, 0, 0},
		"claim version two": {0, 1, 0},
	}}
	client := &fakeClient{classifyAs: "metamorphosis", diffJSON: "not json"}
	tracker := NewTracker(engine, client, s, 0.95)

	state := seedBoard(t, s, "claim version one")
	tracker.Observe(context.Background(), state, UnknownTrigger)

	next := state
	next.CurrentClaim = "claim version two"
	next.CycleCount = 2
	_, transition, err := tracker.Observe(context.Background(), next, UnknownTrigger)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if transition == nil {
		t.Fatal("expected a transition")
	}
	if transition.ChangeType != types.ChangeRefinement {
		t.Errorf("unknown class must fall back to refinement, got %s", transition.ChangeType)
	}
	if len(transition.DiffAdditions) != 0 || len(transition.DiffRemovals) != 0 {
		t.Errorf("unparseable diff must yield empty lists, got %+v", transition)
	}
}

func TestStagnationSignal(t *testing.T) {
	s := openTestStore(t)

	// Identical vectors: every cycle is a no-transition cycle.
	engine := &fakeEngine{}
	tracker := NewTracker(engine, &fakeClient{classifyAs: "refinement"}, s, 0.95)

	state := seedBoard(t, s, "unmoving claim")
	for cycle := 1; cycle <= 4; cycle++ {
		state.CycleCount = cycle
		if _, _, err := tracker.Observe(context.Background(), state, UnknownTrigger); err != nil {
			t.Fatalf("observe cycle %d: %v", cycle, err)
		}
	}

	// Cycles 2, 3, 4 were similar: the streak is 3.
	if !tracker.ConsumeStagnation() {
		t.Fatal("expected stagnation after three no-transition cycles")
	}
	// The signal is consumed on read.
	if tracker.ConsumeStagnation() {
		t.Error("stagnation must reset after consumption")
	}
}

func TestReplayTransitionsIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	engine := &fakeEngine{vectors: map[string][]float32{
		"claim version one": {1, 0, 0},
		"claim version two": {0, 1, 0},
	}}
	client := &fakeClient{classifyAs: "pivot", diffJSON: `{"additions": [], "removals": []}`}
	tracker := NewTracker(engine, client, s, 0.95)

	state := seedBoard(t, s, "claim version one")
	tracker.Observe(context.Background(), state, UnknownTrigger)
	next := state
	next.CurrentClaim = "claim version two"
	next.CycleCount = 2
	tracker.Observe(context.Background(), next, UnknownTrigger)

	for i := 0; i < 2; i++ {
		if _, err := tracker.ReplayTransitions(context.Background(), state.ID); err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
	}

	all, err := s.GetTransitions(state.ID)
	if err != nil {
		t.Fatalf("get transitions: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("replay must not duplicate transitions, got %d rows", len(all))
	}
}
