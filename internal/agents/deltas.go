package agents

import "agora/internal/types"

// Fixed per-role support deltas. Steelman and Quantifier are signed by
// their output; everything else is a constant.
var roleDeltas = map[types.Role]float64{
	types.RoleExplorer:        +0.10,
	types.RoleCritic:          -0.15,
	types.RoleConnector:       +0.05,
	types.RoleOperationalizer: +0.05,
	types.RoleReducer:         0.00,
	types.RoleBoundaryHunter:  -0.05,
	types.RoleTranslator:      +0.02,
	types.RoleHistorian:       0.00,
	types.RoleGraveKeeper:     -0.10,
	types.RoleCartographer:    0.00,
	types.RolePerturber:       0.00,
	types.RoleSummarizer:      0.00,
}

// ProposedDelta computes the support delta an accepted output proposes.
func ProposedDelta(role types.Role, out *types.AgentOutput) float64 {
	switch role {
	case types.RoleSteelman:
		// Strengthening the claim raises support; strengthening the
		// objection lowers it.
		if out.StrengthenedSide == "claim" {
			return +0.08
		}
		return -0.08
	case types.RoleQuantifier:
		if out.Direction >= 0 {
			return +0.03
		}
		return -0.03
	default:
		return roleDeltas[role]
	}
}
