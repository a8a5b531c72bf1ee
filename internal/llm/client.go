// Package llm is the chat transport consumed by the agent dispatcher.
// It exposes a minimal capability set: Chat against a named model, and
// ChatRandom which samples a model from the configured pool.
package llm

import (
	"context"
	"math/rand"
	"sync"

	"agora/internal/types"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"` // "system" or "user"
	Content string `json:"content"`
}

// Usage carries the transport-reported token counts. Missing values
// default to zero.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ChatResponse is the result of a single chat call.
type ChatResponse struct {
	Content string
	Model   string
	Usage   Usage
	CostUSD float64
}

// Client is the chat capability set. Implementations: the Gemini REST
// client and deterministic fakes in tests.
type Client interface {
	// Chat sends messages to the named model.
	Chat(ctx context.Context, model string, messages []Message) (*ChatResponse, error)

	// ChatRandom samples a model from the pool and sends messages to it.
	ChatRandom(ctx context.Context, messages []Message) (*ChatResponse, error)
}

// Pool is an ordered set of model identifiers with uniform sampling.
// Sampling is guarded so concurrent agent calls may share one pool.
type Pool struct {
	models []string
	mu     sync.Mutex
	rng    *rand.Rand
}

// NewPool builds a pool over the given models. seed fixes the sampling
// sequence; pass a time-derived seed in production.
func NewPool(models []string, seed int64) *Pool {
	cp := make([]string, len(models))
	copy(cp, models)
	return &Pool{
		models: cp,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Sample returns a uniformly sampled model identifier.
func (p *Pool) Sample() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.models) == 0 {
		return ""
	}
	return p.models[p.rng.Intn(len(p.models))]
}

// Contains reports whether model is in the pool.
func (p *Pool) Contains(model string) bool {
	for _, m := range p.models {
		if m == model {
			return true
		}
	}
	return false
}

// Models returns a copy of the pool contents in declaration order.
func (p *Pool) Models() []string {
	cp := make([]string, len(p.models))
	copy(cp, p.models)
	return cp
}

// validateModel turns an out-of-pool model request into a transport error
// at the interface boundary.
func validateModel(pool *Pool, model string) error {
	if !pool.Contains(model) {
		return types.NewError(types.KindTransport, "model not in configured pool: "+model, nil)
	}
	return nil
}
