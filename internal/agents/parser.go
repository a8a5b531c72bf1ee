package agents

import (
	"encoding/json"
	"strings"

	"agora/internal/types"
)

// ParseOutput turns a raw model response into a schema-checked AgentOutput.
// Malformed JSON is a parse error (the contribution is dropped); well-formed
// output that fails a role-specific sanity check comes back with
// Valid=false so the arbiter can reject it.
func ParseOutput(role types.Role, raw, currentClaim string) (*types.AgentOutput, error) {
	body := stripFences(raw)

	var out types.AgentOutput
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, types.NewError(types.KindParse, "agent output is not valid JSON", err)
	}
	out.Raw = raw

	if !out.Valid {
		return &out, nil
	}
	out.Valid = sanityCheck(role, &out, currentClaim)
	return &out, nil
}

// sanityCheck enforces the role-specific schema beyond JSON well-formedness.
func sanityCheck(role types.Role, out *types.AgentOutput, currentClaim string) bool {
	switch role {
	case types.RoleExplorer:
		return strings.TrimSpace(out.NewClaim) != ""

	case types.RoleCritic:
		target := strings.TrimSpace(out.TargetPremise)
		if target == "" || strings.TrimSpace(out.Objection) == "" {
			return false
		}
		// A Critic must target a premise, not the claim as a whole.
		if strings.EqualFold(target, strings.TrimSpace(currentClaim)) {
			return false
		}
		return true

	case types.RoleConnector:
		return strings.TrimSpace(out.Analogy) != "" && strings.TrimSpace(out.TestableMapping) != ""

	case types.RoleSteelman:
		return out.StrengthenedSide == "claim" || out.StrengthenedSide == "objection"

	case types.RoleQuantifier:
		return out.Direction == 1 || out.Direction == -1

	case types.RoleTranslator:
		return strings.TrimSpace(out.Framework) != "" && strings.TrimSpace(out.Translation) != ""

	case types.RoleSummarizer:
		return strings.TrimSpace(out.Context) != ""

	default:
		return strings.TrimSpace(out.Commentary) != ""
	}
}

// stripFences removes a surrounding markdown code fence, which models emit
// despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
