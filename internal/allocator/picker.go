package allocator

import (
	"math/rand"
	"sync"
	"time"

	"github.com/0xedev/vendyz-backend/internal/types"
)

// Picker chooses up to n records from candidates without replacement. The
// engine takes it as a dependency so tests can fix the draw.
type Picker interface {
	Pick(candidates []types.TokenRecord, n int) []types.TokenRecord
}

// randomPicker draws uniformly at random without replacement.
type randomPicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPicker returns the production picker, seeded from the wall clock.
func NewRandomPicker() Picker {
	return &randomPicker{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (p *randomPicker) Pick(candidates []types.TokenRecord, n int) []types.TokenRecord {
	if n <= 0 || len(candidates) == 0 {
		return nil
	}

	shuffled := make([]types.TokenRecord, len(candidates))
	copy(shuffled, candidates)

	p.mu.Lock()
	p.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	p.mu.Unlock()

	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}

// FirstNPicker returns candidates in their given order. Deterministic; used in
// tests and anywhere a fixed draw is needed.
type FirstNPicker struct{}

func (FirstNPicker) Pick(candidates []types.TokenRecord, n int) []types.TokenRecord {
	if n <= 0 || len(candidates) == 0 {
		return nil
	}
	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]types.TokenRecord, n)
	copy(out, candidates[:n])
	return out
}
