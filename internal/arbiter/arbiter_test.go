package arbiter

import (
	"testing"

	"agora/internal/blackboard"
	"agora/internal/types"
)

func result(role types.Role, out types.AgentOutput, delta float64) types.AgentResult {
	o := out
	o.Valid = true
	return types.AgentResult{Role: role, Output: &o, Delta: delta}
}

func TestEvaluateOrdersExplorerCriticConnectorFirst(t *testing.T) {
	state := blackboard.State{CurrentClaim: "the current claim", CycleCount: 1}

	results := []types.AgentResult{
		result(types.RoleSummarizer, types.AgentOutput{Context: "ctx", Evolution: "evo"}, 0),
		result(types.RoleConnector, types.AgentOutput{Analogy: "a", TestableMapping: "m"}, 0.05),
		result(types.RoleCritic, types.AgentOutput{TargetPremise: "some premise", Objection: "obj"}, -0.15),
		result(types.RoleExplorer, types.AgentOutput{NewClaim: "a sharper claim"}, 0.10),
	}

	accepted := Evaluate(results, state)
	if len(accepted) != 4 {
		t.Fatalf("expected 4 accepted, got %d", len(accepted))
	}
	wantOrder := []types.Role{types.RoleExplorer, types.RoleCritic, types.RoleConnector, types.RoleSummarizer}
	for i, want := range wantOrder {
		if accepted[i].Role != want {
			t.Errorf("position %d: expected %s, got %s", i, want, accepted[i].Role)
		}
	}
}

func TestEvaluateVetoesExplorerWhenCriticTargetsProposedClaim(t *testing.T) {
	state := blackboard.State{CurrentClaim: "the current claim", CycleCount: 1}
	proposed := "Consciousness requires embodiment"

	results := []types.AgentResult{
		result(types.RoleExplorer, types.AgentOutput{NewClaim: proposed}, 0.10),
		result(types.RoleCritic, types.AgentOutput{TargetPremise: "  consciousness REQUIRES embodiment ", Objection: "obj"}, -0.15),
	}

	accepted := Evaluate(results, state)
	if len(accepted) != 1 {
		t.Fatalf("expected 1 accepted, got %d", len(accepted))
	}
	if accepted[0].Role != types.RoleCritic {
		t.Errorf("expected only the critic accepted, got %s", accepted[0].Role)
	}
}

func TestEvaluateNoVetoOnShortOrDifferentPremise(t *testing.T) {
	state := blackboard.State{CurrentClaim: "the current claim", CycleCount: 1}

	// Trimmed length < 5 never collides.
	results := []types.AgentResult{
		result(types.RoleExplorer, types.AgentOutput{NewClaim: "abc"}, 0.10),
		result(types.RoleCritic, types.AgentOutput{TargetPremise: "abc", Objection: "obj"}, -0.15),
	}
	if accepted := Evaluate(results, state); len(accepted) != 2 {
		t.Errorf("short texts: expected 2 accepted, got %d", len(accepted))
	}

	// A premise inside the claim but not equal to it does not veto.
	results = []types.AgentResult{
		result(types.RoleExplorer, types.AgentOutput{NewClaim: "minds are prediction machines"}, 0.10),
		result(types.RoleCritic, types.AgentOutput{TargetPremise: "prediction machines", Objection: "obj"}, -0.15),
	}
	if accepted := Evaluate(results, state); len(accepted) != 2 {
		t.Errorf("substring premise: expected 2 accepted, got %d", len(accepted))
	}
}

func TestEvaluateDropsInvalidAndFailed(t *testing.T) {
	state := blackboard.State{CurrentClaim: "the current claim", CycleCount: 1}

	invalid := types.AgentResult{
		Role:   types.RoleCritic,
		Output: &types.AgentOutput{Valid: false, TargetPremise: "p", Objection: "o"},
	}
	failed := types.AgentResult{Role: types.RoleExplorer, Err: types.NewError(types.KindTimeout, "timeout", nil)}

	accepted := Evaluate([]types.AgentResult{invalid, failed}, state)
	if len(accepted) != 0 {
		t.Errorf("expected nothing accepted, got %d", len(accepted))
	}
}

func TestEvaluateInvalidCriticCannotVeto(t *testing.T) {
	state := blackboard.State{CurrentClaim: "the current claim", CycleCount: 1}
	proposed := "Consciousness requires embodiment"

	critic := types.AgentResult{
		Role:   types.RoleCritic,
		Output: &types.AgentOutput{Valid: false, TargetPremise: proposed, Objection: "obj"},
	}
	explorer := result(types.RoleExplorer, types.AgentOutput{NewClaim: proposed}, 0.10)

	accepted := Evaluate([]types.AgentResult{critic, explorer}, state)
	if len(accepted) != 1 || accepted[0].Role != types.RoleExplorer {
		t.Errorf("invalid critic must not veto: accepted %v", accepted)
	}
}
