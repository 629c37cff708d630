package application

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-nlpeval/internal/domain"
)

func numberedCorpus(n int) []domain.LabeledExpression {
	corpus := make([]domain.LabeledExpression, n)
	for i := range corpus {
		corpus[i] = domain.LabeledExpression{
			Text:   fmt.Sprintf("expression %d", i),
			Intent: fmt.Sprintf("intent-%d", i%3),
		}
	}
	return corpus
}

func TestTrainingSize(t *testing.T) {
	tests := []struct {
		n         int
		threshold float64
		want      int
	}{
		{n: 100, threshold: 0.8, want: 80},
		{n: 101, threshold: 0.8, want: 80},
		{n: 100, threshold: 0.999, want: 99},
		{n: 100, threshold: 0.001, want: 0},
		{n: 250, threshold: 0.5, want: 125},
		{n: 7, threshold: 0.5, want: 3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d*%v", tt.n, tt.threshold), func(t *testing.T) {
			assert.Equal(t, tt.want, TrainingSize(tt.n, tt.threshold))
		})
	}
}

func TestSampler_Split(t *testing.T) {
	corpus := numberedCorpus(100)
	original := append([]domain.LabeledExpression(nil), corpus...)

	train, test := NewSeededSampler(1).Split(corpus, 0.8)
	assert.Len(t, train, 80)
	assert.Len(t, test, 20)
	assert.Equal(t, original, corpus, "Split must not reorder its input")

	// Appending to train must not clobber test.
	firstTest := test[0]
	_ = append(train, domain.LabeledExpression{Text: "extra"})
	assert.Equal(t, firstTest, test[0])
}

func TestSampler_SplitIsPartition(t *testing.T) {
	sampler := NewSeededSampler(99)

	property := func(size uint8, raw uint16) bool {
		n := int(size) + 1
		threshold := (float64(raw%999) + 1) / 1000 // (0, 1)
		corpus := numberedCorpus(n)

		train, test := sampler.Split(corpus, threshold)
		if len(train) != TrainingSize(n, threshold) || len(train)+len(test) != n {
			return false
		}

		seen := make(map[string]int, n)
		for _, e := range train {
			seen[e.Text]++
		}
		for _, e := range test {
			seen[e.Text]++
		}
		if len(seen) != n {
			return false
		}
		for _, count := range seen {
			if count != 1 {
				return false
			}
		}
		return true
	}

	require.NoError(t, quick.Check(property, &quick.Config{MaxCount: 300}))
}

func TestSampler_Determinism(t *testing.T) {
	corpus := numberedCorpus(200)

	trainA, testA := NewSeededSampler(42).Split(corpus, 0.75)
	trainB, testB := NewSeededSampler(42).Split(corpus, 0.75)
	assert.Equal(t, trainA, trainB)
	assert.Equal(t, testA, testB)

	trainC, _ := NewSeededSampler(43).Split(corpus, 0.75)
	assert.NotEqual(t, trainA, trainC, "different seeds should shuffle differently")
}

func TestNewSampler_CustomSource(t *testing.T) {
	corpus := numberedCorpus(120)

	a := NewSampler(rand.New(rand.NewPCG(5, 6)))
	b := NewSampler(rand.New(rand.NewPCG(5, 6)))
	trainA, _ := a.Split(corpus, 0.5)
	trainB, _ := b.Split(corpus, 0.5)
	assert.Equal(t, trainA, trainB)

	unseeded := NewSampler(nil)
	train, test := unseeded.Split(corpus, 0.5)
	assert.Len(t, train, 60)
	assert.Len(t, test, 60)
}
