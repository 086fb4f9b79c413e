package nnet

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/xiyueyiwan/COMP551-Project4/num"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func testParams() []*Param {
	return []*Param{
		{Name: "W1", W: mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})},
		{Name: "b1", W: mat.NewDense(1, 3, nil)},
	}
}

func TestNoisyStepClip(t *testing.T) {
	lr := 0.1
	params := testParams()
	before := num.Copy(params[0].W)
	grads := []*mat.Dense{
		mat.NewDense(2, 3, []float64{10, -10, 1.5, -0.5, 2, 100}),
		mat.NewDense(1, 3, []float64{-3, 0, 3}),
	}
	step := NewNoisyStep(lr, 0, num.NewRand(1))
	if err := step.Apply(params, grads); err != nil {
		t.Fatal(err)
	}
	t.Logf("W1 after update:\n%s", num.String(params[0].W))
	expect := []float64{1 - 0.2, 2 + 0.2, 3 - 0.15, 4 + 0.05, 5 - 0.2, 6 - 0.2}
	for i, v := range num.Raw(params[0].W) {
		if math.Abs(v-expect[i]) > 1e-12 {
			t.Errorf("W1[%d] = %g expect %g", i, v, expect[i])
		}
		if d := math.Abs(v - num.Raw(before)[i]); d > lr*ClipBound+1e-12 {
			t.Errorf("W1[%d] changed by %g", i, d)
		}
	}
	expectB := []float64{0.2, 0, -0.2}
	for i, v := range num.Raw(params[1].W) {
		if math.Abs(v-expectB[i]) > 1e-12 {
			t.Errorf("b1[%d] = %g expect %g", i, v, expectB[i])
		}
	}
}

func TestNoisyStepNoise(t *testing.T) {
	const size = 200
	p := []*Param{{Name: "W", W: mat.NewDense(size, size, nil)}}
	g := []*mat.Dense{mat.NewDense(size, size, nil)}
	step := NewNoisyStep(1, 0.5, num.NewRand(234))
	if err := step.Apply(p, g); err != nil {
		t.Fatal(err)
	}
	mean, std := stat.MeanStdDev(num.Raw(p[0].W), nil)
	t.Logf("noise mean=%.4f std=%.4f", mean, std)
	if math.Abs(mean) > 0.01 || math.Abs(std-0.5) > 0.01 {
		t.Errorf("noise mean=%g std=%g expect 0, 0.5", mean, std)
	}
	// same seed gives the same noise
	p2 := []*Param{{Name: "W", W: mat.NewDense(size, size, nil)}}
	if err := NewNoisyStep(1, 0.5, num.NewRand(234)).Apply(p2, g); err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(p[0].W, p2[0].W) {
		t.Error("noise is not reproducible")
	}
}

func TestNoisyStepAtomic(t *testing.T) {
	params := testParams()
	before := []*mat.Dense{num.Copy(params[0].W), num.Copy(params[1].W)}
	grads := []*mat.Dense{
		mat.NewDense(2, 3, []float64{1, 1, 1, 1, 1, 1}),
		mat.NewDense(1, 2, nil),
	}
	step := NewNoisyStep(0.1, 1, num.NewRand(1))
	err := step.Apply(params, grads)
	t.Log(err)
	if !errors.Is(err, ErrDataShape) {
		t.Fatal("expected ErrDataShape, got", err)
	}
	for i, p := range params {
		if !mat.Equal(p.W, before[i]) {
			t.Errorf("%s modified after failed update", p.Name)
		}
	}
	if err := step.Apply(params, grads[:1]); !errors.Is(err, ErrDataShape) {
		t.Error("expected ErrDataShape for gradient count, got", err)
	}
}

func TestNoisyStepNonFinite(t *testing.T) {
	params := testParams()
	grads := []*mat.Dense{
		mat.NewDense(2, 3, []float64{math.NaN(), 1, 1, 1, 1, 1}),
		mat.NewDense(1, 3, []float64{1, 1, 1}),
	}
	err := NewNoisyStep(0.1, 0, num.NewRand(1)).Apply(params, grads)
	var ne *NumericError
	if !errors.As(err, &ne) {
		t.Fatal("expected NumericError, got", err)
	}
	t.Log(ne)
	if !math.IsNaN(params[0].W.At(0, 0)) {
		t.Error("NaN gradient should propagate to the parameter")
	}
	if math.Abs(params[0].W.At(0, 1)-1.9) > 1e-12 || math.Abs(params[1].W.At(0, 0)+0.1) > 1e-12 {
		t.Error("update not applied to finite elements")
	}
}
