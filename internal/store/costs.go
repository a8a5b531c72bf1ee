package store

import (
	"agora/internal/types"
)

// SaveLLMCost inserts one token/cost accounting row. Counts arrive already
// clamped by the dispatcher, but the clamp is repeated here so direct
// writers cannot persist negatives.
func (s *Store) SaveLLMCost(c types.LLMCost) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.InputTokens < 0 {
		c.InputTokens = 0
	}
	if c.OutputTokens < 0 {
		c.OutputTokens = 0
	}
	if c.CostUSD < 0 {
		c.CostUSD = 0
	}

	_, err := s.db.Exec(
		`INSERT INTO llm_costs (blackboard_id, cycle_number, agent_role, model_used, input_tokens, output_tokens, cost_usd)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.BlackboardID, c.CycleNumber, string(c.AgentRole), c.ModelUsed, c.InputTokens, c.OutputTokens, c.CostUSD,
	)
	if err != nil {
		return types.NewError(types.KindPersistence, "failed to insert cost row", err)
	}
	return nil
}

// TotalCost returns the accumulated spend for a blackboard.
func (s *Store) TotalCost(blackboardID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total float64
	err := s.db.QueryRow(
		"SELECT COALESCE(SUM(cost_usd), 0) FROM llm_costs WHERE blackboard_id = ?",
		blackboardID,
	).Scan(&total)
	if err != nil {
		return 0, types.NewError(types.KindPersistence, "failed to sum costs", err)
	}
	return total, nil
}
