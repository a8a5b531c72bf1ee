package blackboard

import (
	"testing"
)

func TestUpdateSupportAppliesWithinBand(t *testing.T) {
	b := New("seed claim", 0)

	old, updated, outcome := b.UpdateSupport(0.1)
	if old != InitialSupport {
		t.Errorf("expected old support %v, got %v", InitialSupport, old)
	}
	if updated != 0.6 {
		t.Errorf("expected updated support 0.6, got %v", updated)
	}
	if outcome != SupportApplied {
		t.Errorf("expected SupportApplied, got %v", outcome)
	}
}

func TestUpdateSupportGraduatesAtThreshold(t *testing.T) {
	b := New("seed claim", 0)

	// 0.50 + 0.40 = 0.90: graduation check runs before the ceiling clamp.
	_, updated, outcome := b.UpdateSupport(0.40)
	if outcome != SupportGraduated {
		t.Fatalf("expected SupportGraduated, got %v", outcome)
	}
	if updated != GraduationThreshold {
		t.Errorf("expected support pinned at %v, got %v", GraduationThreshold, updated)
	}
	if b.HasClaim() {
		t.Error("graduated claim should be nulled")
	}

	state := b.GetState()
	if len(state.GraduatedClaims) != 1 {
		t.Fatalf("expected 1 graduated claim, got %d", len(state.GraduatedClaims))
	}
	if state.GraduatedClaims[0].Claim != "seed claim" {
		t.Errorf("unexpected graduated claim text: %q", state.GraduatedClaims[0].Claim)
	}
}

func TestUpdateSupportGraduatesFarAboveCeiling(t *testing.T) {
	b := New("seed claim", 0)

	// A huge positive delta graduates; the ceiling never wins over graduation.
	_, _, outcome := b.UpdateSupport(1.0)
	if outcome != SupportGraduated {
		t.Fatalf("expected SupportGraduated, got %v", outcome)
	}
}

func TestUpdateSupportKillsAtFloor(t *testing.T) {
	b := New("seed claim", 0)

	_, updated, outcome := b.UpdateSupport(-0.40)
	if outcome != SupportDied {
		t.Fatalf("expected SupportDied, got %v", outcome)
	}
	if updated != SupportFloor {
		t.Errorf("expected support pinned at %v, got %v", SupportFloor, updated)
	}
	if b.HasClaim() {
		t.Error("dead claim should be nulled")
	}

	state := b.GetState()
	if len(state.Cemetery) != 1 {
		t.Fatalf("expected 1 cemetery entry, got %d", len(state.Cemetery))
	}
	entry := state.Cemetery[0]
	if entry.CauseOfDeath != DeathCauseDecay {
		t.Errorf("unexpected cause of death: %q", entry.CauseOfDeath)
	}
	if entry.FinalSupport != SupportFloor {
		t.Errorf("expected final support %v, got %v", SupportFloor, entry.FinalSupport)
	}
}

func TestCemeteryMostRecentFirst(t *testing.T) {
	b := New("first claim", 0)
	b.KillClaim("manual")
	b.UpdateClaim("second claim")
	b.KillClaim("manual")

	state := b.GetState()
	if len(state.Cemetery) != 2 {
		t.Fatalf("expected 2 cemetery entries, got %d", len(state.Cemetery))
	}
	if state.Cemetery[0].Claim != "second claim" {
		t.Errorf("expected most recent death first, got %q", state.Cemetery[0].Claim)
	}
}

func TestObjectionStreak(t *testing.T) {
	b := New("seed claim", 0)

	if got := b.AgeObjection(); got != 0 {
		t.Errorf("no objection should keep streak at 0, got %d", got)
	}

	b.SetActiveObjection("premise X is unfounded")
	b.AgeObjection()
	b.AgeObjection()
	if got := b.AgeObjection(); got != 3 {
		t.Errorf("expected streak 3, got %d", got)
	}

	// A changed objection resets the streak.
	b.SetActiveObjection("premise Y is circular")
	if got := b.AgeObjection(); got != 1 {
		t.Errorf("expected streak reset to 1, got %d", got)
	}

	// Re-setting the identical objection does not reset.
	b.SetActiveObjection("premise Y is circular")
	if got := b.AgeObjection(); got != 2 {
		t.Errorf("expected streak 2 after identical re-set, got %d", got)
	}
}

func TestTranslatorFrameworkCycling(t *testing.T) {
	b := New("seed claim", 0)

	for i, want := range TranslatorFrameworks {
		got := b.NextTranslatorFramework()
		if got != want {
			t.Fatalf("step %d: expected framework %q, got %q", i, want, got)
		}
		b.RecordTranslatorFramework(got)
	}

	// All used: assignment wraps to the head without clearing the set.
	if got := b.NextTranslatorFramework(); got != TranslatorFrameworks[0] {
		t.Errorf("expected wraparound to %q, got %q", TranslatorFrameworks[0], got)
	}
	state := b.GetState()
	if len(state.FrameworksUsed) != len(TranslatorFrameworks) {
		t.Errorf("used set should stay full, got %d entries", len(state.FrameworksUsed))
	}
}

func TestCostAccounting(t *testing.T) {
	b := New("seed claim", 0.10)

	b.AddCost(0.04)
	if b.CostExceeded() {
		t.Error("cost limit should not trip at 0.04 of 0.10")
	}
	b.AddCost(-1) // negative spend is ignored
	b.AddCost(0.06)
	if !b.CostExceeded() {
		t.Error("cost limit should trip at 0.10 of 0.10")
	}

	unlimited := New("seed claim", 0)
	unlimited.AddCost(1000)
	if unlimited.CostExceeded() {
		t.Error("zero limit disables the cost check")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	b := New("seed claim", 0.5)
	b.IncrementCycle()
	b.SetActiveObjection("objection text")
	b.SetAnalogy("analogy text")
	b.AddFrontierIdea("an idea", "explorer")
	b.AddFrontierIdea("an idea", "critic")
	b.RecordTranslatorFramework("physics")
	b.AddCost(0.02)

	restored := Restore(b.GetState())

	want := b.GetState()
	got := restored.GetState()
	if got.ID != want.ID || got.CurrentClaim != want.CurrentClaim ||
		got.SupportStrength != want.SupportStrength ||
		got.ActiveObjection != want.ActiveObjection ||
		got.CycleCount != want.CycleCount ||
		got.AccumulatedCostUSD != want.AccumulatedCostUSD {
		t.Errorf("restored state differs:\n got %+v\nwant %+v", got, want)
	}
	if len(got.FrontierPool) != 1 {
		t.Fatalf("expected 1 frontier idea after restore, got %d", len(got.FrontierPool))
	}
	for _, idea := range got.FrontierPool {
		if idea.SponsorCount != 2 {
			t.Errorf("expected sponsor count 2 after restore, got %d", idea.SponsorCount)
		}
	}
}
