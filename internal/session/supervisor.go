// Package session manages debate session lifecycles: one owning goroutine
// per session, registered in a supervisor that routes pause, resume, stop,
// and status queries.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"agora/internal/agents"
	"agora/internal/blackboard"
	"agora/internal/config"
	"agora/internal/embedding"
	"agora/internal/events"
	"agora/internal/llm"
	"agora/internal/logging"
	"agora/internal/runner"
	"agora/internal/store"
	"agora/internal/trajectory"
	"agora/internal/types"
)

// Supervisor is the session registry. All lifecycle operations go through
// it; the per-session goroutine is the only writer of its blackboard.
type Supervisor struct {
	mu       sync.RWMutex
	sessions map[string]*handle

	// boards maps a live blackboard id to the session that owns it, so two
	// sessions can never interleave writes on the same rows.
	boards map[string]string

	cfg      *config.Config
	client   llm.Client
	embedder embedding.Engine
	store    *store.Store
	bus      *events.Bus
	wg       sync.WaitGroup
}

// handle is the supervisor's record of one live or finished session.
type handle struct {
	mu         sync.Mutex
	sessionID  string
	board      *blackboard.Blackboard
	status     types.SessionStatus
	stopReason string
	lastErr    string
	startedAt  time.Time
	cancel     context.CancelFunc
	resumeCh   chan struct{}
	done       chan struct{}
}

// NewSupervisor builds a supervisor over shared infrastructure.
func NewSupervisor(cfg *config.Config, client llm.Client, embedder embedding.Engine, st *store.Store, bus *events.Bus) *Supervisor {
	return &Supervisor{
		sessions: make(map[string]*handle),
		boards:   make(map[string]string),
		cfg:      cfg,
		client:   client,
		embedder: embedder,
		store:    st,
		bus:      bus,
	}
}

// Start launches a new session seeded with a claim and returns its id.
func (s *Supervisor) Start(ctx context.Context, seedClaim string) (string, error) {
	if seedClaim == "" {
		return "", types.NewError(types.KindValidation, "seed claim must not be empty", nil)
	}
	board := blackboard.New(seedClaim, s.cfg.Session.CostLimitUSD)
	return s.launch(ctx, board)
}

// Resume restores a persisted blackboard and launches a session over it.
func (s *Supervisor) Resume(ctx context.Context, blackboardID string) (string, error) {
	state, err := s.store.LoadBlackboard(blackboardID)
	if err != nil {
		return "", err
	}
	if state.CurrentClaim == "" {
		return "", types.NewError(types.KindValidation,
			fmt.Sprintf("blackboard %s has no live claim to resume", blackboardID), nil)
	}
	return s.launch(ctx, blackboard.Restore(state))
}

func (s *Supervisor) launch(ctx context.Context, board *blackboard.Blackboard) (string, error) {
	sessionID := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)

	h := &handle{
		sessionID: sessionID,
		board:     board,
		status:    types.SessionRunning,
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	budget, err := s.cfg.CycleTimeoutDuration()
	if err != nil {
		cancel()
		return "", err
	}

	tracker := trajectory.NewTracker(s.embedder, s.client, s.store, s.cfg.Session.SimilarityThreshold)
	run := runner.New(runner.Options{
		SessionID:   sessionID,
		Board:       board,
		Dispatcher:  agents.NewDispatcher(s.client),
		Store:       s.store,
		Tracker:     tracker,
		Bus:         s.bus,
		Session:     s.cfg.Session,
		CycleBudget: budget,
		Gate:        h.gate,
	})

	s.mu.Lock()
	if owner, live := s.boards[board.ID()]; live {
		s.mu.Unlock()
		cancel()
		return "", types.NewError(types.KindValidation,
			fmt.Sprintf("blackboard %s is already owned by session %s", board.ID(), owner), nil)
	}
	s.boards[board.ID()] = sessionID
	s.sessions[sessionID] = h
	s.mu.Unlock()

	if err := s.store.SaveBlackboard(board.GetState()); err != nil {
		logging.StoreError("initial blackboard save failed: %v", err)
	}

	s.publishLifecycle(sessionID, events.EventSessionStarted, board)
	logging.Session("session %s started on blackboard %s", sessionID, board.ID())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer close(h.done)

		reason, runErr := run.Run(runCtx)

		s.mu.Lock()
		delete(s.boards, board.ID())
		s.mu.Unlock()

		h.mu.Lock()
		if runErr != nil {
			h.lastErr = runErr.Error()
		}
		h.stopReason = string(reason)
		// Only a natural end of the debate counts as completed; cost
		// ceilings and external stops leave the session stopped.
		switch {
		case runErr == nil && (reason == runner.StopMaxCycles || reason == runner.StopClaimResolved):
			h.status = types.SessionCompleted
		default:
			h.status = types.SessionStopped
		}
		status := h.status
		h.mu.Unlock()

		evt := events.EventSessionCompleted
		if status == types.SessionStopped {
			evt = events.EventSessionStopped
		}
		s.publishLifecycle(sessionID, evt, board)
		logging.Session("session %s finished: %s (reason %s, err %v)", sessionID, status, reason, runErr)
	}()

	return sessionID, nil
}

// Pause suspends a running session at the next phase boundary.
func (s *Supervisor) Pause(sessionID string) error {
	h, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status != types.SessionRunning {
		return fmt.Errorf("session %s is %s, not running", sessionID, h.status)
	}
	h.status = types.SessionPaused
	h.resumeCh = make(chan struct{})
	s.publishLifecycle(sessionID, events.EventSessionPaused, h.board)
	return nil
}

// ResumePaused lets a paused session continue.
func (s *Supervisor) ResumePaused(sessionID string) error {
	h, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status != types.SessionPaused {
		return fmt.Errorf("session %s is %s, not paused", sessionID, h.status)
	}
	h.status = types.SessionRunning
	close(h.resumeCh)
	h.resumeCh = nil
	s.publishLifecycle(sessionID, events.EventSessionResumed, h.board)
	return nil
}

// Stop cancels a session. A paused session is released first so the run
// loop can observe the cancellation. Blocks until the goroutine exits.
func (s *Supervisor) Stop(sessionID string) error {
	h, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	if h.resumeCh != nil {
		close(h.resumeCh)
		h.resumeCh = nil
	}
	h.mu.Unlock()
	h.cancel()
	<-h.done
	return nil
}

// Info returns the externally visible record of one session.
func (s *Supervisor) Info(sessionID string) (types.SessionInfo, error) {
	h, err := s.lookup(sessionID)
	if err != nil {
		return types.SessionInfo{}, err
	}
	return h.info(), nil
}

// List returns info for every registered session.
func (s *Supervisor) List() []types.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.SessionInfo, 0, len(s.sessions))
	for _, h := range s.sessions {
		out = append(out, h.info())
	}
	return out
}

// Wait blocks until every session goroutine has exited.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func (s *Supervisor) lookup(sessionID string) (*handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	return h, nil
}

func (s *Supervisor) publishLifecycle(sessionID, eventType string, board *blackboard.Blackboard) {
	state := board.GetState()
	data := map[string]interface{}{
		"session_id":    sessionID,
		"blackboard_id": state.ID,
		"cycle":         state.CycleCount,
		"support":       state.SupportStrength,
	}
	s.bus.Publish(events.TopicSessions, eventType, data)
	s.bus.Publish(events.SessionTopic(sessionID), eventType, data)
}

// gate implements runner.Gate: it parks the run loop while the session is
// paused and unblocks on resume, stop, or context cancellation.
func (h *handle) gate(ctx context.Context) error {
	for {
		h.mu.Lock()
		if h.status != types.SessionPaused || h.resumeCh == nil {
			h.mu.Unlock()
			return ctx.Err()
		}
		ch := h.resumeCh
		h.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

func (h *handle) info() types.SessionInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	state := h.board.GetState()
	return types.SessionInfo{
		SessionID:    h.sessionID,
		BlackboardID: state.ID,
		Status:       h.status,
		StopReason:   h.stopReason,
		CycleCount:   state.CycleCount,
		Support:      state.SupportStrength,
		Claim:        state.CurrentClaim,
		LastError:    h.lastErr,
		StartedAt:    h.startedAt,
	}
}
