package embedding

import (
	"context"
	"sync"
)

// serialEngine guards a shared backend with a mutex so that only one embed
// request is in flight at a time. The embedding model is shared across all
// sessions; callers block until the slot frees.
type serialEngine struct {
	inner Engine
	mu    sync.Mutex
}

// Serialize wraps an engine in a request-serializing facade. Wrapping an
// already-serialized engine returns it unchanged.
func Serialize(inner Engine) Engine {
	if _, ok := inner.(*serialEngine); ok {
		return inner
	}
	return &serialEngine{inner: inner}
}

func (s *serialEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.inner.Embed(ctx, text)
}

func (s *serialEngine) Dimensions() int { return s.inner.Dimensions() }

func (s *serialEngine) Name() string { return s.inner.Name() }
