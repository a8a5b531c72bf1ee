// Package agents maps epistemic roles to prompt templates, output parsers,
// and proposed support deltas, and dispatches the LLM calls that drive a
// debate cycle.
package agents

import (
	"context"

	"agora/internal/llm"
	"agora/internal/logging"
	"agora/internal/types"
)

// Dispatcher renders a role's prompt against the READ snapshot, calls the
// chat transport with a randomly sampled model, and parses the response.
type Dispatcher struct {
	client llm.Client
}

// NewDispatcher builds a dispatcher over a chat transport.
func NewDispatcher(client llm.Client) *Dispatcher {
	return &Dispatcher{client: client}
}

// Dispatch runs one agent call. The returned result is either a parsed
// output with its proposed delta or an error; either way the cost row
// reflects whatever usage the transport reported (clamped to >= 0, nil when
// the call never produced usage). A failed agent never aborts the cycle.
func (d *Dispatcher) Dispatch(ctx context.Context, role types.Role, pctx PromptContext) (types.AgentResult, *types.LLMCost) {
	system, user := RenderPrompts(role, pctx)
	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}

	result := types.AgentResult{Role: role, Prompt: user}

	resp, err := d.client.ChatRandom(ctx, messages)
	if err != nil {
		if ctx.Err() != nil && types.KindOf(err) == "" {
			err = types.NewError(types.KindTimeout, string(role)+" call timed out", err)
		}
		logging.Agents("%s failed: %v", role, err)
		result.Err = err
		return result, nil
	}
	result.Model = resp.Model

	cost := &types.LLMCost{
		CycleNumber:  pctx.State.CycleCount,
		AgentRole:    role,
		ModelUsed:    resp.Model,
		InputTokens:  clampTokens(resp.Usage.InputTokens),
		OutputTokens: clampTokens(resp.Usage.OutputTokens),
		CostUSD:      clampCost(resp.CostUSD),
	}

	out, err := ParseOutput(role, resp.Content, pctx.State.CurrentClaim)
	if err != nil {
		logging.Agents("%s output unparseable: %v", role, err)
		result.Err = err
		return result, cost
	}

	result.Output = out
	result.Delta = ProposedDelta(role, out)
	logging.AgentsDebug("%s via %s: valid=%v delta=%+.2f", role, resp.Model, out.Valid, result.Delta)
	return result, cost
}

func clampTokens(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func clampCost(c float64) float64 {
	if c < 0 {
		return 0
	}
	return c
}
