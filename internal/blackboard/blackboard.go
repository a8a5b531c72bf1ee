// Package blackboard holds the authoritative per-session debate state: the
// current claim, its support strength, the frontier pool, the cemetery, and
// the graduation record. All mutations happen inside the runner's
// single-writer loop; readers get immutable snapshots.
package blackboard

import (
	"sort"
	"sync"

	"agora/internal/logging"
	"agora/internal/types"

	"github.com/google/uuid"
)

// Support thresholds. Support is clamped to [Floor, Ceiling] after every
// mutation; crossing GraduationThreshold graduates the claim, hitting Floor
// kills it.
const (
	SupportFloor        = 0.2
	GraduationThreshold = 0.85
	SupportCeiling      = 0.9
	InitialSupport      = 0.5
)

// DeathCauseDecay is the cemetery cause recorded when support decays
// through the floor.
const DeathCauseDecay = "Support decay below threshold"

// TranslatorFrameworks is the fixed ordered list the Translator walks
// through. When exhausted, assignment wraps to the head without clearing
// the used set.
var TranslatorFrameworks = []string{
	"physics",
	"information_theory",
	"economics",
	"biology",
	"mathematics",
}

// State is an immutable snapshot of a blackboard. An empty CurrentClaim
// means the claim is null (dead or graduated).
type State struct {
	ID                 string                        `json:"id"`
	CurrentClaim       string                        `json:"current_claim"`
	SupportStrength    float64                       `json:"support_strength"`
	ActiveObjection    string                        `json:"active_objection"`
	ObjectionStreak    int                           `json:"objection_streak"`
	AnalogyOfRecord    string                        `json:"analogy_of_record"`
	FrontierPool       map[string]types.FrontierIdea `json:"frontier_pool"`
	Cemetery           []types.CemeteryEntry         `json:"cemetery"`
	GraduatedClaims    []types.GraduatedClaim        `json:"graduated_claims"`
	CycleCount         int                           `json:"cycle_count"`
	Embedding          []float32                     `json:"embedding,omitempty"`
	FrameworksUsed     []string                      `json:"translator_frameworks_used"`
	CostLimitUSD       float64                       `json:"cost_limit_usd"`
	AccumulatedCostUSD float64                       `json:"accumulated_cost_usd"`
}

// Blackboard is the mutable session state. Methods are safe for concurrent
// readers, but by contract only the cycle runner mutates it.
type Blackboard struct {
	mu sync.RWMutex

	id              string
	currentClaim    string
	support         float64
	objection       string
	objectionStreak int
	analogy         string
	frontier        map[string]*types.FrontierIdea
	cemetery        []types.CemeteryEntry
	graduated       []types.GraduatedClaim
	cycleCount      int
	embedding       []float32
	frameworksUsed  map[string]bool
	costLimitUSD    float64
	accumulatedUSD  float64
}

// New creates a blackboard seeded with a claim at initial support.
func New(seedClaim string, costLimitUSD float64) *Blackboard {
	return &Blackboard{
		id:             uuid.NewString(),
		currentClaim:   seedClaim,
		support:        InitialSupport,
		frontier:       make(map[string]*types.FrontierIdea),
		frameworksUsed: make(map[string]bool),
		costLimitUSD:   costLimitUSD,
	}
}

// Restore rebuilds a blackboard from a persisted snapshot.
func Restore(s State) *Blackboard {
	b := &Blackboard{
		id:              s.ID,
		currentClaim:    s.CurrentClaim,
		support:         s.SupportStrength,
		objection:       s.ActiveObjection,
		objectionStreak: s.ObjectionStreak,
		analogy:         s.AnalogyOfRecord,
		frontier:        make(map[string]*types.FrontierIdea, len(s.FrontierPool)),
		cemetery:        append([]types.CemeteryEntry(nil), s.Cemetery...),
		graduated:       append([]types.GraduatedClaim(nil), s.GraduatedClaims...),
		cycleCount:      s.CycleCount,
		embedding:       append([]float32(nil), s.Embedding...),
		frameworksUsed:  make(map[string]bool, len(s.FrameworksUsed)),
		costLimitUSD:    s.CostLimitUSD,
		accumulatedUSD:  s.AccumulatedCostUSD,
	}
	for id, idea := range s.FrontierPool {
		cp := idea
		cp.SponsorIDs = append([]string(nil), idea.SponsorIDs...)
		b.frontier[id] = &cp
	}
	for _, f := range s.FrameworksUsed {
		b.frameworksUsed[f] = true
	}
	return b
}

// ID returns the stable blackboard identifier.
func (b *Blackboard) ID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.id
}

// GetState returns an immutable snapshot of the blackboard.
func (b *Blackboard) GetState() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stateLocked()
}

func (b *Blackboard) stateLocked() State {
	pool := make(map[string]types.FrontierIdea, len(b.frontier))
	for id, idea := range b.frontier {
		cp := *idea
		cp.SponsorIDs = append([]string(nil), idea.SponsorIDs...)
		pool[id] = cp
	}

	frameworks := make([]string, 0, len(b.frameworksUsed))
	for f := range b.frameworksUsed {
		frameworks = append(frameworks, f)
	}
	sort.Strings(frameworks)

	return State{
		ID:                 b.id,
		CurrentClaim:       b.currentClaim,
		SupportStrength:    b.support,
		ActiveObjection:    b.objection,
		ObjectionStreak:    b.objectionStreak,
		AnalogyOfRecord:    b.analogy,
		FrontierPool:       pool,
		Cemetery:           append([]types.CemeteryEntry(nil), b.cemetery...),
		GraduatedClaims:    append([]types.GraduatedClaim(nil), b.graduated...),
		CycleCount:         b.cycleCount,
		Embedding:          append([]float32(nil), b.embedding...),
		FrameworksUsed:     frameworks,
		CostLimitUSD:       b.costLimitUSD,
		AccumulatedCostUSD: b.accumulatedUSD,
	}
}

// UpdateClaim replaces the current claim text. Does not touch support.
func (b *Blackboard) UpdateClaim(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.currentClaim = text
}

// HasClaim reports whether the claim is non-null.
func (b *Blackboard) HasClaim() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.currentClaim != ""
}

// SupportOutcome describes what a support update did to the claim.
type SupportOutcome int

const (
	// SupportApplied means the delta landed without a lifecycle change.
	SupportApplied SupportOutcome = iota
	// SupportGraduated means the claim crossed the graduation threshold.
	SupportGraduated
	// SupportDied means support decayed through the floor.
	SupportDied
)

// UpdateSupport applies a delta with the clamping/graduation/death logic in
// one atomic step. Check ordering is part of the contract: graduation
// precedes the ceiling, death precedes the ceiling.
func (b *Blackboard) UpdateSupport(delta float64) (old, updated float64, outcome SupportOutcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	old = b.support
	next := old + delta

	switch {
	case next >= GraduationThreshold:
		b.support = GraduationThreshold
		b.graduateLocked()
		outcome = SupportGraduated
	case next <= SupportFloor:
		b.support = SupportFloor
		b.killLocked(DeathCauseDecay)
		outcome = SupportDied
	case next >= SupportCeiling:
		b.support = SupportCeiling
		outcome = SupportApplied
	default:
		b.support = next
		outcome = SupportApplied
	}

	logging.CycleDebug("support %.3f -> %.3f (delta %+.3f, outcome %d)", old, b.support, delta, outcome)
	return old, b.support, outcome
}

// Support returns the current support strength.
func (b *Blackboard) Support() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.support
}

// SetActiveObjection replaces the active objection. A changed attribution
// resets the staleness streak that forces perturbation.
func (b *Blackboard) SetActiveObjection(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if text != b.objection {
		b.objectionStreak = 0
	}
	b.objection = text
}

// AgeObjection bumps the objection staleness streak by one cycle and
// returns the new streak. No-op when there is no active objection.
func (b *Blackboard) AgeObjection() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objection == "" {
		b.objectionStreak = 0
		return 0
	}
	b.objectionStreak++
	return b.objectionStreak
}

// SetAnalogy replaces the analogy of record.
func (b *Blackboard) SetAnalogy(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.analogy = text
}

// IncrementCycle advances the cycle counter and returns the new value.
// Required before any mutation whose semantics reference the cycle index.
func (b *Blackboard) IncrementCycle() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cycleCount++
	return b.cycleCount
}

// CycleCount returns the current cycle index.
func (b *Blackboard) CycleCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cycleCount
}

// KillClaim force-moves the current claim to the cemetery with the current
// support as final support, then nulls the claim.
func (b *Blackboard) KillClaim(cause string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.killLocked(cause)
}

// killLocked appends a cemetery entry (most recent first) and nulls the
// claim. Caller holds the write lock.
func (b *Blackboard) killLocked(cause string) {
	if b.currentClaim == "" {
		return
	}
	entry := types.CemeteryEntry{
		Claim:        b.currentClaim,
		CauseOfDeath: cause,
		FinalSupport: b.support,
		CycleKilled:  b.cycleCount,
	}
	b.cemetery = append([]types.CemeteryEntry{entry}, b.cemetery...)
	b.currentClaim = ""
	logging.Session("claim died at cycle %d: %s", b.cycleCount, cause)
}

// graduateLocked appends a graduated-claim entry and nulls the claim.
// Caller holds the write lock.
func (b *Blackboard) graduateLocked() {
	if b.currentClaim == "" {
		return
	}
	b.graduated = append(b.graduated, types.GraduatedClaim{
		Claim:          b.currentClaim,
		FinalSupport:   b.support,
		CycleGraduated: b.cycleCount,
	})
	b.currentClaim = ""
	logging.Session("claim graduated at cycle %d", b.cycleCount)
}

// SetEmbedding stores the embedding of the current claim.
func (b *Blackboard) SetEmbedding(v []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.embedding = append([]float32(nil), v...)
}

// AddCost accumulates LLM spend and returns the running total.
func (b *Blackboard) AddCost(usd float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if usd > 0 {
		b.accumulatedUSD += usd
	}
	return b.accumulatedUSD
}

// CostExceeded reports whether the accumulated spend crossed the limit.
// A zero limit disables the check.
func (b *Blackboard) CostExceeded() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.costLimitUSD > 0 && b.accumulatedUSD >= b.costLimitUSD
}

// NextTranslatorFramework returns the first framework in the fixed ordered
// list not yet recorded. When all five are used it returns the head and
// does not clear the set.
func (b *Blackboard) NextTranslatorFramework() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, f := range TranslatorFrameworks {
		if !b.frameworksUsed[f] {
			return f
		}
	}
	return TranslatorFrameworks[0]
}

// RecordTranslatorFramework marks a framework as used.
func (b *Blackboard) RecordTranslatorFramework(f string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frameworksUsed[f] = true
}
