package runner

import (
	"agora/internal/types"
)

// graveKeeperThreshold is the support level below which the Grave Keeper
// joins the roster.
const graveKeeperThreshold = 0.4

// rosterInput is everything roster selection depends on, extracted so the
// schedule is testable without a live runner.
type rosterInput struct {
	Cycle             int
	Support           float64
	Stagnated         bool
	RecentlyActivated bool
}

// selectRoster returns the cycle's invoked roles in apply order. The base
// trio runs every cycle; the modular cadences and conditional roles layer
// on top.
func selectRoster(in rosterInput) []types.Role {
	include := map[types.Role]bool{
		types.RoleExplorer:   true,
		types.RoleCritic:     true,
		types.RoleSummarizer: true,
	}

	if in.Cycle%3 == 0 {
		include[types.RoleConnector] = true
		include[types.RoleSteelman] = true
		include[types.RoleOperationalizer] = true
		include[types.RoleQuantifier] = true
	}
	if in.Cycle%5 == 0 {
		include[types.RoleReducer] = true
		include[types.RoleBoundaryHunter] = true
		include[types.RoleTranslator] = true
		include[types.RoleHistorian] = true
	}
	if in.Support < graveKeeperThreshold {
		include[types.RoleGraveKeeper] = true
	}
	if in.Stagnated {
		include[types.RoleCartographer] = true
	}
	if in.RecentlyActivated {
		include[types.RolePerturber] = true
	}

	roster := make([]types.Role, 0, len(include))
	for _, role := range types.AllRoles {
		if include[role] {
			roster = append(roster, role)
		}
	}
	return roster
}
