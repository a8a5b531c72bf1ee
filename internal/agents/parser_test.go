package agents

import (
	"errors"
	"testing"

	"agora/internal/types"
)

func TestParseOutputMalformedJSON(t *testing.T) {
	_, err := ParseOutput(types.RoleExplorer, "not json at all", "claim")
	if err == nil {
		t.Fatal("expected parse error")
	}
	var engineErr *types.EngineError
	if !errors.As(err, &engineErr) || engineErr.Kind != types.KindParse {
		t.Errorf("expected a parse-kind error, got %v", err)
	}
}

func TestParseOutputStripsFences(t *testing.T) {
	raw := "```json\n{\"valid\": true, \"new_claim\": \"a bolder claim\"}\n```"
	out, err := ParseOutput(types.RoleExplorer, raw, "claim")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Valid || out.NewClaim != "a bolder claim" {
		t.Errorf("unexpected output: %+v", out)
	}
	if out.Raw != raw {
		t.Error("Raw should keep the unmodified response")
	}
}

func TestParseOutputSelfInvalidated(t *testing.T) {
	out, err := ParseOutput(types.RoleCritic, `{"valid": false}`, "claim")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Valid {
		t.Error("self-invalidated output must stay invalid")
	}
}

func TestCriticSanityChecks(t *testing.T) {
	claim := "Minds are prediction machines"

	cases := []struct {
		name string
		raw  string
		want bool
	}{
		{"valid premise attack", `{"valid": true, "target_premise": "prediction machines", "objection": "circular"}`, true},
		{"empty objection", `{"valid": true, "target_premise": "prediction machines"}`, false},
		{"empty target", `{"valid": true, "objection": "circular"}`, false},
		{"targets whole claim", `{"valid": true, "target_premise": "minds are PREDICTION machines", "objection": "circular"}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := ParseOutput(types.RoleCritic, tc.raw, claim)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Valid != tc.want {
				t.Errorf("expected valid=%v, got %v", tc.want, out.Valid)
			}
		})
	}
}

func TestRoleSpecificValidity(t *testing.T) {
	cases := []struct {
		role types.Role
		raw  string
		want bool
	}{
		{types.RoleConnector, `{"valid": true, "analogy": "a", "testable_mapping": "m"}`, true},
		{types.RoleConnector, `{"valid": true, "analogy": "a"}`, false},
		{types.RoleSteelman, `{"valid": true, "strengthened_side": "claim"}`, true},
		{types.RoleSteelman, `{"valid": true, "strengthened_side": "both"}`, false},
		{types.RoleQuantifier, `{"valid": true, "commentary": "c", "direction": -1}`, true},
		{types.RoleQuantifier, `{"valid": true, "commentary": "c", "direction": 0}`, false},
		{types.RoleTranslator, `{"valid": true, "framework": "physics", "translation": "t"}`, true},
		{types.RoleTranslator, `{"valid": true, "framework": "physics"}`, false},
		{types.RoleHistorian, `{"valid": true, "commentary": "notes"}`, true},
		{types.RoleHistorian, `{"valid": true}`, false},
	}
	for _, tc := range cases {
		out, err := ParseOutput(tc.role, tc.raw, "claim text here")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.role, err)
		}
		if out.Valid != tc.want {
			t.Errorf("%s %s: expected valid=%v, got %v", tc.role, tc.raw, tc.want, out.Valid)
		}
	}
}

func TestProposedDeltas(t *testing.T) {
	if d := ProposedDelta(types.RoleExplorer, &types.AgentOutput{}); d != 0.10 {
		t.Errorf("explorer delta: %v", d)
	}
	if d := ProposedDelta(types.RoleCritic, &types.AgentOutput{}); d != -0.15 {
		t.Errorf("critic delta: %v", d)
	}
	if d := ProposedDelta(types.RoleSteelman, &types.AgentOutput{StrengthenedSide: "claim"}); d != 0.08 {
		t.Errorf("steelman claim delta: %v", d)
	}
	if d := ProposedDelta(types.RoleSteelman, &types.AgentOutput{StrengthenedSide: "objection"}); d != -0.08 {
		t.Errorf("steelman objection delta: %v", d)
	}
	if d := ProposedDelta(types.RoleQuantifier, &types.AgentOutput{Direction: -1}); d != -0.03 {
		t.Errorf("quantifier delta: %v", d)
	}
	if d := ProposedDelta(types.RoleSummarizer, &types.AgentOutput{}); d != 0 {
		t.Errorf("summarizer delta: %v", d)
	}
}
