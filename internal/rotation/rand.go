package rotation

import (
	"math/rand"
	"sync"
	"time"
)

// Rand is a mutex-guarded pseudo-random source shared by the rotators.
// Seed 0 means time-based; tests inject a fixed seed for reproducibility.
type Rand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRand(seed int64) *Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Rand{rnd: rand.New(rand.NewSource(seed))}
}

func (r *Rand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Intn(n)
}

// Pick returns a uniformly chosen entry, or "" for an empty pool.
func (r *Rand) Pick(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[r.Intn(len(pool))]
}
