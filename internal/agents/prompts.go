package agents

import (
	"fmt"
	"strings"

	"agora/internal/blackboard"
	"agora/internal/types"
)

// PromptContext carries everything a role template can reference: the READ
// snapshot plus role-specific extras.
type PromptContext struct {
	State blackboard.State

	// Framework is the assigned translator framework, set for the
	// Translator only.
	Framework string

	// PerturbationSeed is the activated frontier idea text, set for the
	// Perturber only.
	PerturbationSeed string
}

const outputContract = `Respond with a single JSON object and nothing else. No markdown fences, no prose outside the JSON.
Common fields:
  "valid": boolean; set false if you cannot produce a well-formed contribution.
  "sponsored_ideas": optional array of short candidate-idea strings for the frontier pool.`

var systemPrompts = map[types.Role]string{
	types.RoleExplorer: `You are the Explorer in a structured claim debate. Propose a sharper, bolder, or more generative refinement of the current claim. Do not merely reword it.
Required JSON fields: "new_claim" (the full replacement claim text), "commentary".`,

	types.RoleCritic: `You are the Critic in a structured claim debate. Attack one specific PREMISE of the current claim, never the conclusion as a whole. If your objection only works against the conclusion, set "valid": false.
Required JSON fields: "target_premise" (quote the premise verbatim), "objection".`,

	types.RoleConnector: `You are the Connector. Propose an analogy from a distant domain that illuminates the current claim. The analogy must include a testable mapping between the two domains; if you cannot produce one, set "valid": false.
Required JSON fields: "analogy", "testable_mapping".`,

	types.RoleSteelman: `You are the Steelman. Take the weakest-looking side of the current debate (claim or active objection) and present its strongest possible form.
Required JSON fields: "strengthened_side" ("claim" or "objection"), "commentary".`,

	types.RoleOperationalizer: `You are the Operationalizer. Turn the current claim into something measurable: name the observable variables and a concrete procedure that could test it.
Required JSON fields: "commentary" (the operationalization).`,

	types.RoleQuantifier: `You are the Quantifier. Attach rough magnitudes, ranges, or base rates to the quantities the claim implies, and judge whether the numbers support or undermine it.
Required JSON fields: "commentary", "direction" (1 if the numbers support the claim, -1 if they undermine it).`,

	types.RoleReducer: `You are the Reducer. Strip the claim to its minimal core: what is the smallest statement that preserves its content? Do not argue for or against it.
Required JSON fields: "commentary" (the reduced core).`,

	types.RoleBoundaryHunter: `You are the Boundary Hunter. Find the edge cases and regimes where the claim breaks down.
Required JSON fields: "commentary" (the boundary conditions found).`,

	types.RoleTranslator: `You are the Translator. Restate the current claim in the vocabulary of the assigned framework, preserving its content.
Required JSON fields: "framework" (echo the assigned framework), "translation".`,

	types.RoleHistorian: `You are the Historian. Place the claim in intellectual history: who has argued something like it, what happened to those arguments.
Required JSON fields: "commentary".`,

	types.RoleGraveKeeper: `You are the Grave Keeper. Support for the current claim is low. Compare it against the cemetery of dead claims: is it about to repeat a known failure?
Required JSON fields: "commentary" (the verdict).`,

	types.RoleCartographer: `You are the Cartographer. The debate has stagnated. Map the territory: which regions of the claim space have been explored, which are untouched?
Required JSON fields: "commentary" (the map), "sponsored_ideas" (unexplored directions worth sponsoring).`,

	types.RolePerturber: `You are the Perturber. A frontier idea has been activated. Inject it into the debate: say how it collides with or reshapes the current claim.
Required JSON fields: "commentary".`,

	types.RoleSummarizer: `You are the Summarizer. Produce the cycle's narrative record.
Required JSON fields: "context" (where the debate stands), "evolution" (how the claim has moved), "addressed_objections" (object mapping objection to how it was handled), "remaining_gaps" (object mapping gap to why it matters).`,
}

// RenderPrompts returns the (system, user) prompt pair for a role.
func RenderPrompts(role types.Role, pctx PromptContext) (string, string) {
	system := systemPrompts[role] + "\n\n" + outputContract
	return system, renderUserPrompt(role, pctx)
}

func renderUserPrompt(role types.Role, pctx PromptContext) string {
	s := pctx.State

	var b strings.Builder
	fmt.Fprintf(&b, "Cycle: %d\n", s.CycleCount)
	fmt.Fprintf(&b, "Current claim: %s\n", s.CurrentClaim)
	fmt.Fprintf(&b, "Support strength: %.2f\n", s.SupportStrength)
	if s.ActiveObjection != "" {
		fmt.Fprintf(&b, "Active objection: %s\n", s.ActiveObjection)
	}
	if s.AnalogyOfRecord != "" {
		fmt.Fprintf(&b, "Analogy of record: %s\n", s.AnalogyOfRecord)
	}

	switch role {
	case types.RoleTranslator:
		fmt.Fprintf(&b, "Assigned framework: %s\n", pctx.Framework)
	case types.RolePerturber:
		fmt.Fprintf(&b, "Activated frontier idea: %s\n", pctx.PerturbationSeed)
	case types.RoleGraveKeeper:
		b.WriteString("Cemetery (most recent first):\n")
		for i, e := range s.Cemetery {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "  - %q (died cycle %d: %s)\n", e.Claim, e.CycleKilled, e.CauseOfDeath)
		}
	}

	b.WriteString("\nProduce your contribution now.")
	return b.String()
}
