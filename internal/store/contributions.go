package store

import (
	"agora/internal/types"
)

// SaveContribution inserts one agent contribution row and returns its id.
func (s *Store) SaveContribution(c types.Contribution) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO agent_contributions (blackboard_id, cycle_number, agent_role, model_used, input_prompt, output_text, accepted, support_delta)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.BlackboardID, c.CycleNumber, string(c.AgentRole), c.ModelUsed,
		c.InputPrompt, c.OutputText, boolToInt(c.Accepted), c.SupportDelta,
	)
	if err != nil {
		return 0, types.NewError(types.KindPersistence, "failed to insert contribution", err)
	}
	return res.LastInsertId()
}

// GetContributions returns all contribution rows for a cycle in insertion
// order.
func (s *Store) GetContributions(blackboardID string, cycle int) ([]types.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, cycle_number, agent_role, COALESCE(model_used,''), COALESCE(input_prompt,''), COALESCE(output_text,''), accepted, support_delta
		 FROM agent_contributions
		 WHERE blackboard_id = ? AND cycle_number = ?
		 ORDER BY id ASC`,
		blackboardID, cycle,
	)
	if err != nil {
		return nil, types.NewError(types.KindPersistence, "failed to query contributions", err)
	}
	defer rows.Close()

	var out []types.Contribution
	for rows.Next() {
		c := types.Contribution{BlackboardID: blackboardID}
		var accepted int
		var role string
		if err := rows.Scan(&c.ID, &c.CycleNumber, &role, &c.ModelUsed, &c.InputPrompt, &c.OutputText, &accepted, &c.SupportDelta); err != nil {
			continue
		}
		c.AgentRole = types.Role(role)
		c.Accepted = accepted != 0
		out = append(out, c)
	}
	return out, rows.Err()
}
