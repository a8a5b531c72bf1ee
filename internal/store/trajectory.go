package store

import (
	"database/sql"
	"encoding/json"

	"agora/internal/embedding"
	"agora/internal/types"
)

// SaveTrajectoryPoint writes one embedded claim snapshot. Re-saving the
// same cycle is ignored: the point is written once per cycle.
func (s *Store) SaveTrajectoryPoint(p types.TrajectoryPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO trajectory_points (blackboard_id, cycle_number, embedding_vector, claim_text, support_strength)
		 VALUES (?, ?, ?, ?, ?)`,
		p.BlackboardID, p.CycleNumber, embedding.EncodeVector(p.Embedding), p.ClaimText, p.SupportStrength,
	)
	if err != nil {
		return types.NewError(types.KindPersistence, "failed to insert trajectory point", err)
	}
	return nil
}

// LatestTrajectoryPoint returns the most recent point strictly before the
// given cycle, or nil when none exists.
func (s *Store) LatestTrajectoryPoint(blackboardID string, beforeCycle int) (*types.TrajectoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT id, cycle_number, embedding_vector, claim_text, support_strength
		 FROM trajectory_points
		 WHERE blackboard_id = ? AND cycle_number < ?
		 ORDER BY cycle_number DESC LIMIT 1`,
		blackboardID, beforeCycle,
	)

	p := types.TrajectoryPoint{BlackboardID: blackboardID}
	var blob []byte
	err := row.Scan(&p.ID, &p.CycleNumber, &blob, &p.ClaimText, &p.SupportStrength)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewError(types.KindPersistence, "failed to load trajectory point", err)
	}
	if p.Embedding, err = embedding.DecodeVector(blob); err != nil {
		return nil, types.NewError(types.KindPersistence, "corrupt embedding blob", err)
	}
	return &p, nil
}

// GetTrajectoryPoints returns all points for a blackboard, ascending.
func (s *Store) GetTrajectoryPoints(blackboardID string) ([]types.TrajectoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, cycle_number, embedding_vector, claim_text, support_strength
		 FROM trajectory_points WHERE blackboard_id = ? ORDER BY cycle_number ASC`,
		blackboardID,
	)
	if err != nil {
		return nil, types.NewError(types.KindPersistence, "failed to query trajectory points", err)
	}
	defer rows.Close()

	var out []types.TrajectoryPoint
	for rows.Next() {
		p := types.TrajectoryPoint{BlackboardID: blackboardID}
		var blob []byte
		if err := rows.Scan(&p.ID, &p.CycleNumber, &blob, &p.ClaimText, &p.SupportStrength); err != nil {
			continue
		}
		if p.Embedding, err = embedding.DecodeVector(blob); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveTransition inserts a claim transition. Insertion is idempotent on
// (blackboard_id, to_cycle): a re-run returns the existing row's id without
// error.
func (s *Store) SaveTransition(t types.ClaimTransition) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	additions, _ := json.Marshal(t.DiffAdditions)
	removals, _ := json.Marshal(t.DiffRemovals)

	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO claim_transitions
		 (blackboard_id, from_cycle, to_cycle, previous_claim, new_claim, trigger_agent, trigger_contribution_id, change_type, diff_additions, diff_removals)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.BlackboardID, t.FromCycle, t.ToCycle, t.PreviousClaim, t.NewClaim,
		t.TriggerAgent, t.TriggerContributionID, string(t.ChangeType), string(additions), string(removals),
	)
	if err != nil {
		return 0, types.NewError(types.KindPersistence, "failed to insert transition", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		return res.LastInsertId()
	}

	var id int64
	err = s.db.QueryRow(
		"SELECT id FROM claim_transitions WHERE blackboard_id = ? AND to_cycle = ?",
		t.BlackboardID, t.ToCycle,
	).Scan(&id)
	if err != nil {
		return 0, types.NewError(types.KindPersistence, "failed to load existing transition", err)
	}
	return id, nil
}

// GetTransitions returns all transitions for a blackboard ascending by
// to_cycle.
func (s *Store) GetTransitions(blackboardID string) ([]types.ClaimTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, from_cycle, to_cycle, previous_claim, new_claim, trigger_agent, trigger_contribution_id, change_type, COALESCE(diff_additions,'[]'), COALESCE(diff_removals,'[]')
		 FROM claim_transitions WHERE blackboard_id = ? ORDER BY to_cycle ASC`,
		blackboardID,
	)
	if err != nil {
		return nil, types.NewError(types.KindPersistence, "failed to query transitions", err)
	}
	defer rows.Close()

	var out []types.ClaimTransition
	for rows.Next() {
		t := types.ClaimTransition{BlackboardID: blackboardID}
		var changeType, additions, removals string
		if err := rows.Scan(&t.ID, &t.FromCycle, &t.ToCycle, &t.PreviousClaim, &t.NewClaim,
			&t.TriggerAgent, &t.TriggerContributionID, &changeType, &additions, &removals); err != nil {
			continue
		}
		t.ChangeType = types.ChangeType(changeType)
		json.Unmarshal([]byte(additions), &t.DiffAdditions)
		json.Unmarshal([]byte(removals), &t.DiffRemovals)
		out = append(out, t)
	}
	return out, rows.Err()
}

// SaveSummary writes the Summarizer's narrative for one cycle. The unique
// (blackboard_id, cycle_number) constraint makes re-saves no-ops.
func (s *Store) SaveSummary(sum types.ClaimSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	objections, _ := json.Marshal(sum.AddressedObjections)
	gaps, _ := json.Marshal(sum.RemainingGaps)

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO claim_summaries (blackboard_id, cycle_number, context, evolution, addressed_objections, remaining_gaps)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sum.BlackboardID, sum.CycleNumber, sum.Context, sum.Evolution, string(objections), string(gaps),
	)
	if err != nil {
		return types.NewError(types.KindPersistence, "failed to insert summary", err)
	}
	return nil
}

// LatestSummaryCycle returns the cycle of the most recent summary, or -1
// when none exists. Used for summarizer debouncing.
func (s *Store) LatestSummaryCycle(blackboardID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cycle sql.NullInt64
	err := s.db.QueryRow(
		"SELECT MAX(cycle_number) FROM claim_summaries WHERE blackboard_id = ?",
		blackboardID,
	).Scan(&cycle)
	if err != nil {
		return -1, types.NewError(types.KindPersistence, "failed to query latest summary cycle", err)
	}
	if !cycle.Valid {
		return -1, nil
	}
	return int(cycle.Int64), nil
}
