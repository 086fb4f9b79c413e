package nnet

import (
	"math/rand/v2"

	"github.com/xiyueyiwan/COMP551-Project4/num"
	"gonum.org/v1/gonum/mat"
)

// NoisyStep applies the update P -= LearningRate * (clip(G, ±ClipBound) + N(0, Std))
// with independent noise for every parameter element.
type NoisyStep struct {
	LearningRate float64
	Std          float64
	rng          *rand.Rand
}

// NewNoisyStep creates the optimizer with its own noise generator.
func NewNoisyStep(learningRate, std float64, rng *rand.Rand) *NoisyStep {
	return &NoisyStep{LearningRate: learningRate, Std: std, rng: rng}
}

// Apply updates all of the params or none of them. Shape mismatches return an error
// wrapping ErrDataShape before any parameter is changed. If a gradient has non-finite
// elements the update is still applied and a *NumericError is returned.
func (s *NoisyStep) Apply(params []*Param, grads []*mat.Dense) error {
	if len(params) != len(grads) {
		return shapeErr("%d gradients for %d params", len(grads), len(params))
	}
	for i, p := range params {
		if grads[i] == nil || !num.SameShape(p.Shape(), num.Dims(grads[i])) {
			return shapeErr("gradient for %s has shape %v, expect %v", p.Name, dims(grads[i]), p.Shape())
		}
	}
	var warn error
	updates := make([]*mat.Dense, len(grads))
	for i, g := range grads {
		if warn == nil && !num.Finite(g) {
			warn = &NumericError{What: "gradient of " + params[i].Name}
		}
		r, c := g.Dims()
		u := mat.NewDense(r, c, nil)
		u.Copy(g)
		num.Clip(u, -ClipBound, ClipBound)
		if s.Std > 0 {
			u.Add(u, num.Normal(r, c, 0, s.Std, s.rng))
		}
		updates[i] = u
	}
	for i, p := range params {
		p.W.Sub(p.W, scaled(s.LearningRate, updates[i]))
	}
	return warn
}

func dims(m *mat.Dense) []int {
	if m == nil {
		return nil
	}
	return num.Dims(m)
}
