package numeric

import (
	"math/rand/v2"
	"sync"
)

// Backend owns the random state shared by a prediction run.
type Backend interface {
	// Seed resets the random source to a deterministic state.
	Seed(seed uint64)
	// Rand returns the generator driven by the current source.
	Rand() *rand.Rand
	// Name identifies the backend in logs.
	Name() string
}

// Gonum is the gonum-backed Backend.
type Gonum struct {
	mu  sync.Mutex
	pcg *rand.PCG
	rng *rand.Rand
}

// NewGonum returns a backend seeded with seed.
func NewGonum(seed uint64) *Gonum {
	pcg := rand.NewPCG(seed, seed)
	return &Gonum{pcg: pcg, rng: rand.New(pcg)}
}

// Seed resets the underlying PCG stream. The *rand.Rand handed out by Rand
// stays valid and observes the new state.
func (g *Gonum) Seed(seed uint64) {
	g.mu.Lock()
	g.pcg.Seed(seed, seed)
	g.mu.Unlock()
}

func (g *Gonum) Rand() *rand.Rand { return g.rng }

func (g *Gonum) Name() string { return "gonum" }
