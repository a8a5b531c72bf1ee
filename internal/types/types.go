// Package types holds the shared domain types of the agora debate engine:
// agent roles, contributions, frontier ideas, trajectory records, and the
// typed error kinds used across packages.
package types

import "time"

// =============================================================================
// AGENT ROLES
// =============================================================================

// Role identifies the fixed epistemic role an agent plays in a debate.
type Role string

const (
	RoleExplorer        Role = "explorer"
	RoleCritic          Role = "critic"
	RoleConnector       Role = "connector"
	RoleSteelman        Role = "steelman"
	RoleOperationalizer Role = "operationalizer"
	RoleQuantifier      Role = "quantifier"
	RoleReducer         Role = "reducer"
	RoleBoundaryHunter  Role = "boundary_hunter"
	RoleTranslator      Role = "translator"
	RoleHistorian       Role = "historian"
	RoleGraveKeeper     Role = "grave_keeper"
	RoleCartographer    Role = "cartographer"
	RolePerturber       Role = "perturber"
	RoleSummarizer      Role = "summarizer"
)

// AllRoles lists every role in declaration order. The order matters: the
// runner applies accepted contributions Explorer first, then Critic, then
// Connector, then the rest in this order.
var AllRoles = []Role{
	RoleExplorer,
	RoleCritic,
	RoleConnector,
	RoleSteelman,
	RoleOperationalizer,
	RoleQuantifier,
	RoleReducer,
	RoleBoundaryHunter,
	RoleTranslator,
	RoleHistorian,
	RoleGraveKeeper,
	RoleCartographer,
	RolePerturber,
	RoleSummarizer,
}

// =============================================================================
// AGENT OUTPUT AND RESULTS
// =============================================================================

// AgentOutput is the parsed, schema-validated output of a single agent call.
// Valid is false when schema validation or a role-specific sanity check
// failed; invalid outputs are dropped by the arbiter.
//
// The role-specific fields are sparse: each role populates only its own.
type AgentOutput struct {
	Valid bool `json:"valid"`

	// Explorer
	NewClaim string `json:"new_claim,omitempty"`

	// Critic
	TargetPremise string `json:"target_premise,omitempty"`
	Objection     string `json:"objection,omitempty"`

	// Connector
	Analogy         string `json:"analogy,omitempty"`
	TestableMapping string `json:"testable_mapping,omitempty"`

	// Steelman
	StrengthenedSide string `json:"strengthened_side,omitempty"` // "claim" or "objection"

	// Translator
	Framework   string `json:"framework,omitempty"`
	Translation string `json:"translation,omitempty"`

	// Summarizer
	Context             string            `json:"context,omitempty"`
	Evolution           string            `json:"evolution,omitempty"`
	AddressedObjections map[string]string `json:"addressed_objections,omitempty"`
	RemainingGaps       map[string]string `json:"remaining_gaps,omitempty"`

	// Frontier sponsorship: any role may sponsor candidate ideas.
	SponsoredIdeas []string `json:"sponsored_ideas,omitempty"`

	// Commentary is the free-text body common to most roles (Historian notes,
	// Reducer core, Boundary Hunter limits, Grave Keeper verdict, ...).
	Commentary string `json:"commentary,omitempty"`

	// Quantifier direction: +1 supports, -1 undermines.
	Direction int `json:"direction,omitempty"`

	// Raw is the unmodified model response, kept for persistence.
	Raw string `json:"-"`
}

// AgentResult is one entry of the WRITE-phase result set: either a parsed
// output with its proposed support delta, or an error.
type AgentResult struct {
	Role   Role
	Model  string
	Output *AgentOutput
	Delta  float64
	Prompt string
	Err    error
}

// Contribution is the persisted record of one invoked agent in one cycle.
type Contribution struct {
	ID           int64
	BlackboardID string
	CycleNumber  int
	AgentRole    Role
	ModelUsed    string
	InputPrompt  string
	OutputText   string
	Accepted     bool
	SupportDelta float64
}

// =============================================================================
// BLACKBOARD RECORDS
// =============================================================================

// FrontierIdea is a sponsor-weighted candidate idea in the frontier pool.
// ID is the SHA-256 hex-upper digest of IdeaText. SponsorIDs is kept sorted
// and duplicate-free; SponsorCount always equals len(SponsorIDs).
type FrontierIdea struct {
	ID           string   `json:"id"`
	IdeaText     string   `json:"idea_text"`
	SponsorIDs   []string `json:"sponsor_ids"`
	SponsorCount int      `json:"sponsor_count"`
	CyclesAlive  int      `json:"cycles_alive"`
	Activated    bool     `json:"activated"`
}

// CemeteryEntry records a dead claim. Append-only per session.
type CemeteryEntry struct {
	Claim        string  `json:"claim"`
	CauseOfDeath string  `json:"cause_of_death"`
	FinalSupport float64 `json:"final_support"`
	CycleKilled  int     `json:"cycle_killed"`
}

// GraduatedClaim records a claim that crossed the graduation threshold.
type GraduatedClaim struct {
	Claim          string  `json:"claim"`
	FinalSupport   float64 `json:"final_support"`
	CycleGraduated int     `json:"cycle_graduated"`
}

// =============================================================================
// TRAJECTORY RECORDS
// =============================================================================

// TrajectoryPoint is one embedded claim snapshot, written once per cycle
// while the claim is non-null.
type TrajectoryPoint struct {
	ID              int64
	BlackboardID    string
	CycleNumber     int
	Embedding       []float32
	ClaimText       string
	SupportStrength float64
}

// ChangeType classifies a claim transition.
type ChangeType string

const (
	ChangeRefinement  ChangeType = "refinement"
	ChangePivot       ChangeType = "pivot"
	ChangeExpansion   ChangeType = "expansion"
	ChangeContraction ChangeType = "contraction"
)

// KnownChangeType reports whether s is one of the four transition classes.
func KnownChangeType(s string) bool {
	switch ChangeType(s) {
	case ChangeRefinement, ChangePivot, ChangeExpansion, ChangeContraction:
		return true
	}
	return false
}

// ClaimTransition records a semantic shift between two consecutive
// trajectory points. Unique per (blackboard_id, to_cycle).
type ClaimTransition struct {
	ID                    int64
	BlackboardID          string
	FromCycle             int
	ToCycle               int
	PreviousClaim         string
	NewClaim              string
	TriggerAgent          string
	TriggerContributionID int64
	ChangeType            ChangeType
	DiffAdditions         []string
	DiffRemovals          []string
}

// ClaimSummary is the Summarizer's persisted narrative for one cycle.
// Unique per (blackboard_id, cycle_number).
type ClaimSummary struct {
	ID                  int64
	BlackboardID        string
	CycleNumber         int
	Context             string
	Evolution           string
	AddressedObjections map[string]string
	RemainingGaps       map[string]string
}

// LLMCost is one row of token/cost accounting for a single agent call.
// Token and cost counts are clamped to non-negative at ingest.
type LLMCost struct {
	ID           int64
	BlackboardID string
	CycleNumber  int
	AgentRole    Role
	ModelUsed    string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// SessionStatus is the externally visible state of a debate session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionPaused    SessionStatus = "paused"
	SessionStopped   SessionStatus = "stopped"
	SessionCompleted SessionStatus = "completed"
)

// SessionInfo is the info record surfaced by the supervisor. StopReason is
// set once the run loop ends ("max_cycles_reached", "cost_limit_exceeded",
// ...).
type SessionInfo struct {
	SessionID    string
	BlackboardID string
	Status       SessionStatus
	StopReason   string
	CycleCount   int
	Support      float64
	Claim        string
	LastError    string
	StartedAt    time.Time
}
