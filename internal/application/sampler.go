package application

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/ahrav/go-nlpeval/internal/domain"
)

// RandSource is the randomness a Sampler draws from.
// *rand.Rand from math/rand/v2 satisfies it.
type RandSource interface {
	Shuffle(n int, swap func(i, j int))
}

// Sampler splits a corpus into a model-building partition and a held-out
// test partition. Partition sizes are fixed by the threshold; which
// expressions land where depends on the random source.
// Sampler is safe for concurrent use.
type Sampler struct {
	mu  sync.Mutex
	rng RandSource
}

// NewSampler creates a sampler drawing from rng. A nil rng selects a
// randomly seeded PCG generator, so two runs over the same corpus will
// usually produce different partitions.
func NewSampler(rng RandSource) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Sampler{rng: rng}
}

// NewSeededSampler creates a sampler whose partitions are reproducible for
// a given seed and corpus.
func NewSeededSampler(seed uint64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewPCG(seed, seed))}
}

// TrainingSize returns floor(n * threshold), the size of the
// model-building partition.
func TrainingSize(n int, threshold float64) int {
	return int(math.Floor(float64(n) * threshold))
}

// Split shuffles a copy of corpus and returns its first
// TrainingSize(len(corpus), threshold) expressions as train and the rest as
// test. Every expression lands in exactly one partition; corpus itself is
// not modified. Preconditions on corpus size and threshold are the
// caller's to check.
func (s *Sampler) Split(corpus []domain.LabeledExpression, threshold float64) (train, test []domain.LabeledExpression) {
	shuffled := make([]domain.LabeledExpression, len(corpus))
	copy(shuffled, corpus)

	s.mu.Lock()
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	s.mu.Unlock()

	limit := min(max(TrainingSize(len(shuffled), threshold), 0), len(shuffled))
	// Full slice expressions keep an append to train from overwriting test.
	return shuffled[:limit:limit], shuffled[limit:]
}
