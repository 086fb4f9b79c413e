package nnet

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/xiyueyiwan/COMP551-Project4/num"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const l2 = 0.01

func TestBackpropFiniteDiff(t *testing.T) {
	net := testNet(t, 11)
	x, y := testBatch(12)
	cost, grads, err := Backprop{L2Reg: l2}.Gradients(net, x, y)
	if err != nil {
		t.Fatal(err)
	}
	expect, _ := net.Cost(x, y, l2)
	if math.Abs(cost-expect) > 1e-12 {
		t.Errorf("cost %g expect %g", cost, expect)
	}
	settings := &fd.Settings{Formula: fd.Central, Step: 1e-6}
	for i, p := range net.Params() {
		data := p.W.RawMatrix().Data
		orig := append([]float64(nil), data...)
		f := func(v []float64) float64 {
			copy(data, v)
			c, err := net.Cost(x, y, l2)
			if err != nil {
				t.Fatal(err)
			}
			return c
		}
		numeric := fd.Gradient(nil, f, orig, settings)
		copy(data, orig)
		analytic := num.Raw(grads[i])
		t.Logf("%s analytic=%.5f", p.Name, analytic)
		if !floats.EqualApprox(analytic, numeric, 1e-5) {
			t.Errorf("%s gradient mismatch\nanalytic=%v\nnumeric =%v", p.Name, analytic, numeric)
		}
	}
}

func TestGraphEngine(t *testing.T) {
	net := testNet(t, 13)
	x, y := testBatch(14)
	conf := net.Config
	conf.L2Reg = l2
	conf.Engine = EngineGraph
	eng, err := NewEngine(conf, nIn, nOut)
	if err != nil {
		t.Fatal(err)
	}
	t.Log(eng)
	cost1, grads1, err := eng.Gradients(net, x, y)
	if err != nil {
		t.Fatal(err)
	}
	cost2, grads2, err := Backprop{L2Reg: l2}.Gradients(net, x, y)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(cost1-cost2) > 1e-9 {
		t.Errorf("graph cost %g backprop cost %g", cost1, cost2)
	}
	for i, p := range net.Params() {
		if !mat.EqualApprox(grads1[i], grads2[i], 1e-9) {
			t.Errorf("%s gradient mismatch\ngraph:\n%s\nbackprop:\n%s", p.Name, num.String(grads1[i]), num.String(grads2[i]))
		}
	}
	// repeated runs reuse the compiled graph and must not carry over earlier gradients
	cost3, grads3, err := eng.Gradients(net, x, y)
	if err != nil || cost3 != cost1 {
		t.Errorf("second run: cost %g err %v", cost3, err)
	}
	for i, p := range net.Params() {
		if !mat.Equal(grads3[i], grads1[i]) {
			t.Errorf("%s gradient changed on repeated run\nfirst:\n%s\nsecond:\n%s", p.Name, num.String(grads1[i]), num.String(grads3[i]))
		}
	}
	net.Params()[2].W.Scale(0.5, net.Params()[2].W)
	x2, y2 := testBatch(15)
	cost4, grads4, err := eng.Gradients(net, x2, y2)
	if err != nil {
		t.Fatal(err)
	}
	cost5, grads5, err := Backprop{L2Reg: l2}.Gradients(net, x2, y2)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(cost4-cost5) > 1e-9 {
		t.Errorf("new batch: graph cost %g backprop cost %g", cost4, cost5)
	}
	for i, p := range net.Params() {
		if !mat.EqualApprox(grads4[i], grads5[i], 1e-9) {
			t.Errorf("%s new batch gradient mismatch\ngraph:\n%s\nbackprop:\n%s", p.Name, num.String(grads4[i]), num.String(grads5[i]))
		}
	}
	xs := mat.NewDense(batch-1, nIn, nil)
	if _, _, err := eng.Gradients(net, xs, y[:batch-1]); !errors.Is(err, ErrDataShape) {
		t.Error("expected ErrDataShape for wrong batch size, got", err)
	}
}

func TestNewEngine(t *testing.T) {
	conf := DefaultConfig()
	if e, err := NewEngine(conf, nIn, nOut); err != nil {
		t.Error(err)
	} else if _, ok := e.(Backprop); !ok {
		t.Errorf("default engine is %T", e)
	}
	conf.Engine = "sgd"
	if _, err := NewEngine(conf, nIn, nOut); !errors.Is(err, ErrConfig) {
		t.Error("expected ErrConfig, got", err)
	}
}
