package classifier

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftmaxSumsToOne(t *testing.T) {
	cases := map[string][]float32{
		"small":    {0.1, 0.2, 0.3},
		"large":    {1000, 1001, 1002},
		"negative": {-1000, -999, -998, -5000},
		"uniform":  make([]float32, CategoryCount),
		"single":   {42},
	}
	for name, logits := range cases {
		t.Run(name, func(t *testing.T) {
			probs := Softmax(logits)
			require.Len(t, probs, len(logits))
			sum := 0.0
			for _, p := range probs {
				require.False(t, math.IsNaN(p))
				assert.GreaterOrEqual(t, p, 0.0)
				assert.LessOrEqual(t, p, 1.0)
				sum += p
			}
			assert.InDelta(t, 1.0, sum, 1e-5)
		})
	}
}

func TestSoftmaxEmpty(t *testing.T) {
	assert.Nil(t, Softmax(nil))
}

func TestArgmaxMatchesLargestProbability(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 200; n++ {
		logits := make([]float32, CategoryCount)
		for i := range logits {
			logits[i] = float32(rng.NormFloat64() * 4)
		}
		probs := Softmax(logits)
		idx := Argmax(probs)
		for i, p := range probs {
			assert.LessOrEqual(t, p, probs[idx], "trial %d slot %d", n, i)
		}
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, CategoryCount)
	}
}

func TestArgmaxTiesResolveToLowestIndex(t *testing.T) {
	assert.Equal(t, 1, Argmax([]float64{0.1, 0.4, 0.4, 0.1}))
}

func TestCategoryIndex(t *testing.T) {
	assert.Equal(t, 0, CategoryIndex("Theft"))
	assert.Equal(t, 14, CategoryIndex("Others"))
	assert.Equal(t, -1, CategoryIndex("theft"))
	assert.Len(t, Categories(), 15)
}
