package num

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler draws a single random value. The gonum distuv distributions implement it.
type Sampler interface {
	Rand() float64
}

// NewRand returns a generator for the given seed, or a clock based seed if seed <= 0.
func NewRand(seed int64) *rand.Rand {
	if seed <= 0 {
		seed = time.Now().UTC().UnixNano()
	}
	return rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
}

// Fill sets every element of m to a value drawn from s, in row major order.
func Fill(m *mat.Dense, s Sampler) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, s.Rand())
		}
	}
}

// Uniform fills m with samples from U[lo, hi).
func Uniform(m *mat.Dense, lo, hi float64, rng *rand.Rand) {
	Fill(m, distuv.Uniform{Min: lo, Max: hi, Src: rng})
}

// Normal returns a rows x cols matrix of i.i.d. samples from N(mean, std).
func Normal(rows, cols int, mean, std float64, rng *rand.Rand) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	Fill(m, distuv.Normal{Mu: mean, Sigma: std, Src: rng})
	return m
}
