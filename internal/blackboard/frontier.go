package blackboard

import (
	"crypto/sha256"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"agora/internal/logging"
	"agora/internal/types"
)

// frontierRetirementAge is the cycles-alive bound; entries whose
// post-increment age exceeds it are retired destructively.
const frontierRetirementAge = 10

// IdeaID computes the stable content hash of an idea text: SHA-256,
// hex-upper.
func IdeaID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return strings.ToUpper(fmt.Sprintf("%x", sum))
}

// AddFrontierIdea sponsors an idea. Novel text inserts a fresh entry; a new
// sponsor on known text increments the count; a repeat sponsorship by the
// same sponsor is a no-op.
func (b *Blackboard) AddFrontierIdea(text, sponsorID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := IdeaID(text)
	idea, ok := b.frontier[id]
	if !ok {
		b.frontier[id] = &types.FrontierIdea{
			ID:           id,
			IdeaText:     text,
			SponsorIDs:   []string{sponsorID},
			SponsorCount: 1,
		}
		logging.Frontier("new idea %s sponsored by %s", id[:8], sponsorID)
		return
	}

	for _, s := range idea.SponsorIDs {
		if s == sponsorID {
			return
		}
	}
	idea.SponsorIDs = append(idea.SponsorIDs, sponsorID)
	sort.Strings(idea.SponsorIDs)
	idea.SponsorCount = len(idea.SponsorIDs)
	logging.Frontier("idea %s re-sponsored by %s (count=%d)", id[:8], sponsorID, idea.SponsorCount)
}

// EligibleFrontiers returns entries with at least two sponsors that have
// not been activated, in stable id order.
func (b *Blackboard) EligibleFrontiers() []types.FrontierIdea {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.eligibleLocked()
}

func (b *Blackboard) eligibleLocked() []types.FrontierIdea {
	ids := make([]string, 0, len(b.frontier))
	for id := range b.frontier {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []types.FrontierIdea
	for _, id := range ids {
		idea := b.frontier[id]
		if idea.SponsorCount >= 2 && !idea.Activated {
			cp := *idea
			cp.SponsorIDs = append([]string(nil), idea.SponsorIDs...)
			out = append(out, cp)
		}
	}
	return out
}

// ActivateFrontier flips an entry to activated. Fails if the id is unknown
// or the entry is already activated.
func (b *Blackboard) ActivateFrontier(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idea, ok := b.frontier[id]
	if !ok {
		return fmt.Errorf("frontier idea %s not found", id)
	}
	if idea.Activated {
		return fmt.Errorf("frontier idea %s already activated", id)
	}
	idea.Activated = true
	logging.Frontier("activated idea %s", id[:8])
	return nil
}

// GetFrontierIdea returns an idea by id.
func (b *Blackboard) GetFrontierIdea(id string) (types.FrontierIdea, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	idea, ok := b.frontier[id]
	if !ok {
		return types.FrontierIdea{}, false
	}
	cp := *idea
	cp.SponsorIDs = append([]string(nil), idea.SponsorIDs...)
	return cp, true
}

// AgeFrontiers increments cycles_alive for every entry and retires any
// whose post-increment age exceeds the bound. Retirement is destructive.
func (b *Blackboard) AgeFrontiers() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, idea := range b.frontier {
		idea.CyclesAlive++
		if idea.CyclesAlive > frontierRetirementAge {
			delete(b.frontier, id)
			logging.Frontier("retired idea %s after %d cycles", id[:8], idea.CyclesAlive)
		}
	}
}

// SelectWeightedFrontier samples an eligible entry with probability
// proportional to sponsor_count / max(1, cycles_alive). Returns nil when
// the eligible set is empty.
func (b *Blackboard) SelectWeightedFrontier(rng *rand.Rand) *types.FrontierIdea {
	b.mu.RLock()
	defer b.mu.RUnlock()

	eligible := b.eligibleLocked()
	if len(eligible) == 0 {
		return nil
	}

	weights := make([]float64, len(eligible))
	var total float64
	for i, idea := range eligible {
		age := idea.CyclesAlive
		if age < 1 {
			age = 1
		}
		weights[i] = float64(idea.SponsorCount) / float64(age)
		total += weights[i]
	}

	draw := rng.Float64() * total
	for i, w := range weights {
		draw -= w
		if draw <= 0 {
			pick := eligible[i]
			return &pick
		}
	}
	pick := eligible[len(eligible)-1]
	return &pick
}
