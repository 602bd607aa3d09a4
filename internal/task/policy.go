package task

import (
	"math/rand/v2"
	"time"
)

// Policy supplies the randomized choices a worker makes. Each worker owns
// its own Policy; implementations need not be safe for concurrent use.
type Policy interface {
	// Operation picks the operation of the next task.
	Operation() Operation

	// Operand picks the operand of the next task.
	Operand() float32

	// Pause picks how long the worker sleeps after its current step.
	Pause() time.Duration
}

// PolicyFactory builds the Policy for worker number worker. Producers are
// numbered from 0 and consumers continue after the last producer.
type PolicyFactory func(worker int) Policy

// RandomPolicy draws operations uniformly from the fixed set, operands
// uniformly from [0, 1) and pauses uniformly from [minPause, maxPause).
type RandomPolicy struct {
	rng      *rand.Rand
	minPause time.Duration
	maxPause time.Duration
}

// NewRandomPolicy creates a RandomPolicy over src.
func NewRandomPolicy(src rand.Source, minPause, maxPause time.Duration) *RandomPolicy {
	if maxPause < minPause {
		maxPause = minPause
	}
	return &RandomPolicy{
		rng:      rand.New(src),
		minPause: minPause,
		maxPause: maxPause,
	}
}

// Operation implements Policy.
func (p *RandomPolicy) Operation() Operation {
	return Operations[p.rng.IntN(len(Operations))]
}

// Operand implements Policy.
func (p *RandomPolicy) Operand() float32 {
	return p.rng.Float32()
}

// Pause implements Policy.
func (p *RandomPolicy) Pause() time.Duration {
	span := p.maxPause - p.minPause
	if span <= 0 {
		return p.minPause
	}
	return p.minPause + time.Duration(p.rng.Int64N(int64(span)))
}

// SeededPolicies gives every worker a deterministic stream derived from seed
// and its worker number, so a run is reproducible.
func SeededPolicies(seed uint64, minPause, maxPause time.Duration) PolicyFactory {
	return func(worker int) Policy {
		return NewRandomPolicy(rand.NewPCG(seed, uint64(worker)), minPause, maxPause)
	}
}

// UnseededPolicies gives every worker a freshly seeded stream.
func UnseededPolicies(minPause, maxPause time.Duration) PolicyFactory {
	return func(int) Policy {
		return NewRandomPolicy(rand.NewPCG(rand.Uint64(), rand.Uint64()), minPause, maxPause)
	}
}
