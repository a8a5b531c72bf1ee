package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"agora/internal/blackboard"
	"agora/internal/embedding"
	"agora/internal/logging"
	"agora/internal/types"
)

// SaveBlackboard upserts the blackboard row and mirrors the frontier pool
// and cemetery into their child tables. The in-memory state stays
// authoritative: a failed save is retried with fresher state next cycle.
func (s *Store) SaveBlackboard(state blackboard.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return types.NewError(types.KindPersistence, "failed to marshal blackboard state", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return types.NewError(types.KindPersistence, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO blackboards (id, current_claim, support_strength, active_objection, analogy_of_record, cycle_count, state_json, embedding, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET
		 current_claim = excluded.current_claim,
		 support_strength = excluded.support_strength,
		 active_objection = excluded.active_objection,
		 analogy_of_record = excluded.analogy_of_record,
		 cycle_count = excluded.cycle_count,
		 state_json = excluded.state_json,
		 embedding = excluded.embedding,
		 updated_at = CURRENT_TIMESTAMP`,
		state.ID, state.CurrentClaim, state.SupportStrength, state.ActiveObjection,
		state.AnalogyOfRecord, state.CycleCount, string(stateJSON), embedding.EncodeVector(state.Embedding),
	)
	if err != nil {
		return types.NewError(types.KindPersistence, "failed to upsert blackboard", err)
	}

	// Mirror the frontier pool: replace-all keeps retirement destructive.
	if _, err := tx.Exec("DELETE FROM frontier_ideas WHERE blackboard_id = ?", state.ID); err != nil {
		return types.NewError(types.KindPersistence, "failed to clear frontier rows", err)
	}
	ids := make([]string, 0, len(state.FrontierPool))
	for id := range state.FrontierPool {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		idea := state.FrontierPool[id]
		sponsors, _ := json.Marshal(idea.SponsorIDs)
		_, err := tx.Exec(
			`INSERT INTO frontier_ideas (id, blackboard_id, idea_text, sponsor_ids, sponsor_count, cycles_alive, activated)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			idea.ID, state.ID, idea.IdeaText, string(sponsors), idea.SponsorCount, idea.CyclesAlive, boolToInt(idea.Activated),
		)
		if err != nil {
			return types.NewError(types.KindPersistence, "failed to insert frontier row", err)
		}
	}

	// Cemetery rows are append-only; the unique constraint makes re-saves
	// idempotent.
	for _, e := range state.Cemetery {
		_, err := tx.Exec(
			`INSERT OR IGNORE INTO cemetery_entries (blackboard_id, claim, cause_of_death, final_support, cycle_killed)
			 VALUES (?, ?, ?, ?, ?)`,
			state.ID, e.Claim, e.CauseOfDeath, e.FinalSupport, e.CycleKilled,
		)
		if err != nil {
			return types.NewError(types.KindPersistence, "failed to insert cemetery row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return types.NewError(types.KindPersistence, "failed to commit blackboard save", err)
	}

	logging.Store("saved blackboard %s at cycle %d", state.ID, state.CycleCount)
	return nil
}

// LoadBlackboard rebuilds a blackboard state from its persisted row.
func (s *Store) LoadBlackboard(id string) (blackboard.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stateJSON string
	err := s.db.QueryRow("SELECT state_json FROM blackboards WHERE id = ?", id).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return blackboard.State{}, fmt.Errorf("blackboard %s not found", id)
	}
	if err != nil {
		return blackboard.State{}, types.NewError(types.KindPersistence, "failed to load blackboard", err)
	}

	var state blackboard.State
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return blackboard.State{}, types.NewError(types.KindPersistence, "failed to decode blackboard state", err)
	}
	return state, nil
}

// SaveSnapshot writes an immutable per-cycle snapshot row.
func (s *Store) SaveSnapshot(state blackboard.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return types.NewError(types.KindPersistence, "failed to marshal snapshot", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO blackboard_snapshots (blackboard_id, cycle_number, state_json, embedding_vector)
		 VALUES (?, ?, ?, ?)`,
		state.ID, state.CycleCount, string(stateJSON), embedding.EncodeVector(state.Embedding),
	)
	if err != nil {
		return types.NewError(types.KindPersistence, "failed to insert snapshot", err)
	}
	return nil
}

// GetSnapshots returns snapshots for a cycle range, ascending.
func (s *Store) GetSnapshots(blackboardID string, fromCycle, toCycle int) ([]blackboard.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT state_json FROM blackboard_snapshots
		 WHERE blackboard_id = ? AND cycle_number BETWEEN ? AND ?
		 ORDER BY cycle_number ASC`,
		blackboardID, fromCycle, toCycle,
	)
	if err != nil {
		return nil, types.NewError(types.KindPersistence, "failed to query snapshots", err)
	}
	defer rows.Close()

	var out []blackboard.State
	for rows.Next() {
		var stateJSON string
		if err := rows.Scan(&stateJSON); err != nil {
			continue
		}
		var state blackboard.State
		if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
			continue
		}
		out = append(out, state)
	}
	return out, rows.Err()
}

// BlackboardSummary is one row of the session listing.
type BlackboardSummary struct {
	ID           string
	CurrentClaim string
	Support      float64
	CycleCount   int
	UpdatedAt    string
}

// ListBlackboards returns all persisted blackboards, most recently
// updated first.
func (s *Store) ListBlackboards() ([]BlackboardSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, COALESCE(current_claim, ''), support_strength, cycle_count, updated_at
		 FROM blackboards ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, types.NewError(types.KindPersistence, "failed to list blackboards", err)
	}
	defer rows.Close()

	var out []BlackboardSummary
	for rows.Next() {
		var b BlackboardSummary
		if err := rows.Scan(&b.ID, &b.CurrentClaim, &b.Support, &b.CycleCount, &b.UpdatedAt); err != nil {
			continue
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
