package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"agora/internal/blackboard"
	"agora/internal/config"
	"agora/internal/events"
	"agora/internal/llm"
	"agora/internal/store"
	"agora/internal/types"
)

func TestMain(m *testing.M) {
	// go.opencensus.io (pulled in by the genai dependency chain) starts a
	// background worker at package init that never exits.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// invalidClient answers every call with a self-invalidated output after a
// short delay, so sessions tick without resolving and tests can interleave
// lifecycle operations.
type invalidClient struct {
	delay time.Duration
}

func (c *invalidClient) Chat(ctx context.Context, model string, messages []llm.Message) (*llm.ChatResponse, error) {
	return c.ChatRandom(ctx, messages)
}

func (c *invalidClient) ChatRandom(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error) {
	if c.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.delay):
		}
	}
	return &llm.ChatResponse{Content: `{"valid": false}`, Model: "invalid"}, nil
}

type flatEngine struct{}

func (flatEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}
func (flatEngine) Dimensions() int { return 3 }
func (flatEngine) Name() string    { return "flat" }

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Session.MaxCycles = 2
	cfg.Session.DecayRate = 0.01
	cfg.Session.PerturbationProbability = 0
	cfg.Store.DatabasePath = filepath.Join(t.TempDir(), "agora.db")
	return cfg
}

func newTestSupervisor(t *testing.T, cfg *config.Config, client llm.Client) (*Supervisor, *store.Store) {
	t.Helper()
	st, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sup := NewSupervisor(cfg, client, flatEngine{}, st, events.NewBus())
	t.Cleanup(sup.Wait)
	return sup, st
}

func TestStartRunsToCompletion(t *testing.T) {
	cfg := testConfig(t)
	sup, st := newTestSupervisor(t, cfg, &invalidClient{})

	id, err := sup.Start(context.Background(), "a claim under test")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	sup.Wait()

	info, err := sup.Info(id)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Status != types.SessionCompleted {
		t.Errorf("expected completed, got %s (last error %q)", info.Status, info.LastError)
	}
	if info.CycleCount != cfg.Session.MaxCycles {
		t.Errorf("expected %d cycles, got %d", cfg.Session.MaxCycles, info.CycleCount)
	}

	// The run left a loadable blackboard behind.
	state, err := st.LoadBlackboard(info.BlackboardID)
	if err != nil {
		t.Fatalf("load persisted blackboard: %v", err)
	}
	if state.CycleCount != info.CycleCount {
		t.Errorf("persisted cycle count %d != %d", state.CycleCount, info.CycleCount)
	}
}

func TestStartRejectsEmptyClaim(t *testing.T) {
	cfg := testConfig(t)
	sup, _ := newTestSupervisor(t, cfg, &invalidClient{})

	if _, err := sup.Start(context.Background(), ""); err == nil {
		t.Fatal("expected validation error for empty claim")
	}
}

func TestPauseFreezesAndResumeContinues(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.MaxCycles = 10000
	cfg.Session.DecayRate = 0 // keep the claim alive indefinitely
	sup, _ := newTestSupervisor(t, cfg, &invalidClient{delay: 5 * time.Millisecond})

	id, err := sup.Start(context.Background(), "a long-running claim")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := sup.Pause(id); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := sup.Pause(id); err == nil {
		t.Error("double pause should fail")
	}

	// Let any in-flight phase drain, then verify the cycle counter froze.
	time.Sleep(100 * time.Millisecond)
	before, _ := sup.Info(id)
	if before.Status != types.SessionPaused {
		t.Fatalf("expected paused, got %s", before.Status)
	}
	time.Sleep(100 * time.Millisecond)
	after, _ := sup.Info(id)
	if after.CycleCount != before.CycleCount {
		t.Errorf("cycle count advanced while paused: %d -> %d", before.CycleCount, after.CycleCount)
	}

	if err := sup.ResumePaused(id); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := sup.ResumePaused(id); err == nil {
		t.Error("resuming a running session should fail")
	}

	if err := sup.Stop(id); err != nil {
		t.Fatalf("stop: %v", err)
	}
	info, _ := sup.Info(id)
	if info.Status != types.SessionStopped {
		t.Errorf("expected stopped, got %s", info.Status)
	}
}

func TestStopWhilePaused(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.MaxCycles = 10000
	cfg.Session.DecayRate = 0
	sup, _ := newTestSupervisor(t, cfg, &invalidClient{delay: 5 * time.Millisecond})

	id, err := sup.Start(context.Background(), "a claim to abandon")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := sup.Pause(id); err != nil {
		t.Fatalf("pause: %v", err)
	}

	// Stop must release the pause gate and join the goroutine.
	if err := sup.Stop(id); err != nil {
		t.Fatalf("stop: %v", err)
	}
	info, _ := sup.Info(id)
	if info.Status != types.SessionStopped {
		t.Errorf("expected stopped, got %s", info.Status)
	}
}

func TestResumeFromPersistedBlackboard(t *testing.T) {
	cfg := testConfig(t)
	sup, st := newTestSupervisor(t, cfg, &invalidClient{})

	// Persist a board out of band, as a previous process would have.
	board := blackboard.New("a persisted claim", 0)
	board.IncrementCycle()
	if err := st.SaveBlackboard(board.GetState()); err != nil {
		t.Fatalf("save: %v", err)
	}

	id, err := sup.Resume(context.Background(), board.ID())
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	sup.Wait()

	info, err := sup.Info(id)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.BlackboardID != board.ID() {
		t.Errorf("resumed the wrong blackboard: %s", info.BlackboardID)
	}
	if info.Status != types.SessionCompleted {
		t.Errorf("expected completed, got %s", info.Status)
	}
}

func TestResumeRejectsResolvedClaim(t *testing.T) {
	cfg := testConfig(t)
	sup, st := newTestSupervisor(t, cfg, &invalidClient{})

	board := blackboard.New("a finished claim", 0)
	board.KillClaim("manual")
	if err := st.SaveBlackboard(board.GetState()); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := sup.Resume(context.Background(), board.ID()); err == nil {
		t.Fatal("expected error resuming a resolved claim")
	}
}

func TestUnknownSessionOperations(t *testing.T) {
	cfg := testConfig(t)
	sup, _ := newTestSupervisor(t, cfg, &invalidClient{})

	if err := sup.Pause("nope"); err == nil {
		t.Error("pause of unknown session should fail")
	}
	if _, err := sup.Info("nope"); err == nil {
		t.Error("info of unknown session should fail")
	}
	if got := sup.List(); len(got) != 0 {
		t.Errorf("expected empty list, got %d", len(got))
	}
}

// costlyClient self-invalidates like invalidClient but charges for every
// call, to drive a session into its cost ceiling.
type costlyClient struct {
	costPerCall float64
}

func (c *costlyClient) Chat(ctx context.Context, model string, messages []llm.Message) (*llm.ChatResponse, error) {
	return c.ChatRandom(ctx, messages)
}

func (c *costlyClient) ChatRandom(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: `{"valid": false}`, Model: "costly", CostUSD: c.costPerCall}, nil
}

func TestCostLimitStopsSession(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.MaxCycles = 10
	cfg.Session.CostLimitUSD = 0.005
	// Base trio costs 0.006 per cycle, so cycle 1 crosses the ceiling and
	// the check at the top of cycle 2 stops the session.
	sup, _ := newTestSupervisor(t, cfg, &costlyClient{costPerCall: 0.002})

	id, err := sup.Start(context.Background(), "an expensive claim")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	sup.Wait()

	info, err := sup.Info(id)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Status != types.SessionStopped {
		t.Errorf("cost-limited session must be stopped, got %s", info.Status)
	}
	if info.StopReason != "cost_limit_exceeded" {
		t.Errorf("unexpected stop reason %q", info.StopReason)
	}
	if info.LastError != "" {
		t.Errorf("a cost stop is clean, got error %q", info.LastError)
	}
	if info.CycleCount != 1 {
		t.Errorf("expected the overrunning cycle to finish, got %d cycles", info.CycleCount)
	}
}

func TestResumeRejectsLiveBlackboard(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.MaxCycles = 10000
	cfg.Session.DecayRate = 0
	sup, _ := newTestSupervisor(t, cfg, &invalidClient{delay: 5 * time.Millisecond})

	id, err := sup.Start(context.Background(), "a long running claim")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	info, err := sup.Info(id)
	if err != nil {
		t.Fatalf("info: %v", err)
	}

	// The live session owns the blackboard; a second writer is rejected.
	if _, err := sup.Resume(context.Background(), info.BlackboardID); err == nil {
		t.Error("expected rejection of a second session over a live blackboard")
	}

	if err := sup.Stop(id); err != nil {
		t.Fatalf("stop: %v", err)
	}

	// Ownership is released once the first session is gone.
	id2, err := sup.Resume(context.Background(), info.BlackboardID)
	if err != nil {
		t.Fatalf("resume after stop: %v", err)
	}
	if err := sup.Stop(id2); err != nil {
		t.Fatalf("stop resumed session: %v", err)
	}
}
