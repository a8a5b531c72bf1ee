// Package arbiter turns the heterogeneous WRITE-phase result set into a
// single ordered list of accepted contributions. Evaluate is a pure
// function; the runner applies the deltas.
package arbiter

import (
	"strings"

	"agora/internal/blackboard"
	"agora/internal/logging"
	"agora/internal/types"
)

// Evaluate applies the acceptance rules to a cycle's result set and returns
// the accepted results in the deterministic apply order: Explorer, Critic,
// Connector, then the remaining roles in declaration order. Ordering is
// part of the contract because support clamping is order-sensitive.
func Evaluate(results []types.AgentResult, state blackboard.State) []types.AgentResult {
	byRole := make(map[types.Role][]types.AgentResult)
	for _, r := range results {
		if r.Err != nil || r.Output == nil {
			continue
		}
		byRole[r.Role] = append(byRole[r.Role], r)
	}

	var accepted []types.AgentResult
	for _, role := range types.AllRoles {
		for _, r := range byRole[role] {
			if acceptResult(r, byRole) {
				accepted = append(accepted, r)
			} else {
				logging.Arbiter("rejected %s output (valid=%v)", r.Role, r.Output.Valid)
			}
		}
	}

	logging.Arbiter("cycle %d: accepted %d of %d results", state.CycleCount, len(accepted), len(results))
	return accepted
}

func acceptResult(r types.AgentResult, byRole map[types.Role][]types.AgentResult) bool {
	if !r.Output.Valid {
		return false
	}

	// Explorer is vetoed when a valid Critic in the same cycle targets the
	// proposed claim itself.
	if r.Role == types.RoleExplorer {
		for _, critic := range byRole[types.RoleCritic] {
			if critic.Output.Valid && premiseEquals(critic.Output.TargetPremise, r.Output.NewClaim) {
				logging.Arbiter("explorer vetoed: critic targets proposed claim")
				return false
			}
		}
	}

	return true
}

// premiseEquals is the deliberately strict collision test between a Critic's
// target premise and an Explorer's proposed claim: case-insensitive exact
// equality on trimmed text, and only for texts of trimmed length >= 5.
// Looser semantic similarity belongs to the trajectory detector, not here.
func premiseEquals(premise, claim string) bool {
	p := strings.TrimSpace(premise)
	c := strings.TrimSpace(claim)
	if len(p) < 5 || len(c) < 5 {
		return false
	}
	return strings.EqualFold(p, c)
}
