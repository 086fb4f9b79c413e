package nnet

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/xiyueyiwan/COMP551-Project4/num"
	"github.com/xiyueyiwan/COMP551-Project4/num/graph"
	"gonum.org/v1/gonum/mat"
)

// GradientEngine computes the cost of a minibatch and its gradient with respect to each
// network parameter, in the same order and shape as net.Params().
type GradientEngine interface {
	Gradients(net *Network, x *mat.Dense, y []int32) (cost float64, grads []*mat.Dense, err error)
}

// NewEngine returns the gradient engine selected by the config.
func NewEngine(conf Config, nIn, nOut int) (GradientEngine, error) {
	switch conf.Engine {
	case "", EngineBackprop:
		return Backprop{L2Reg: conf.L2Reg}, nil
	case EngineGraph:
		return NewGraphEngine(conf.BatchSize, nIn, conf.Hidden, nOut, conf.L2Reg)
	}
	return nil, configErr("unknown engine %q", conf.Engine)
}

// Backprop computes the gradients with a hand written backward pass through the layers.
type Backprop struct {
	L2Reg float64
}

func (b Backprop) Gradients(net *Network, x *mat.Dense, y []int32) (float64, []*mat.Dense, error) {
	if err := net.checkLabels(x, y); err != nil {
		return 0, nil, err
	}
	outputs := net.Fprop(x)
	yPred := outputs[len(outputs)-1]
	out := net.OutLayer()
	cost := out.Loss(yPred, y) + b.L2Reg*net.L2Sqr()
	if net.DebugLevel >= 3 {
		fmt.Printf("yPred:\n%s\n", num.String(yPred))
	}
	grads := make([]*mat.Dense, 0, len(net.params))
	grad := out.LossGrad(yPred, y)
	for i := len(net.Layers) - 1; i >= 0; i-- {
		in := x
		if i > 0 {
			in = outputs[i-1]
		}
		var dparams []*mat.Dense
		grad, dparams = net.Layers[i].Bprop(in, outputs[i], grad)
		grads = append(dparams, grads...)
	}
	if b.L2Reg != 0 {
		for i, p := range net.params {
			if p.Name[0] == 'W' {
				grads[i].Add(grads[i], scaled(2*b.L2Reg, p.W))
			}
		}
	}
	return cost, grads, nil
}

func scaled(alpha float64, m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	res := mat.NewDense(r, c, nil)
	res.Scale(alpha, m)
	return res
}

// GraphEngine computes the gradients with a gorgonia expression graph compiled for a
// fixed batch size.
type GraphEngine struct {
	*graph.Engine
}

// NewGraphEngine builds the graph for the given sizes.
func NewGraphEngine(batch, nIn, nHidden, nOut int, l2 float64) (*GraphEngine, error) {
	e, err := graph.New(batch, nIn, nHidden, nOut, l2)
	if err != nil {
		return nil, errors.Wrap(ErrConfig, err.Error())
	}
	return &GraphEngine{Engine: e}, nil
}

func (g *GraphEngine) Gradients(net *Network, x *mat.Dense, y []int32) (float64, []*mat.Dense, error) {
	if err := net.checkLabels(x, y); err != nil {
		return 0, nil, err
	}
	if r, _ := x.Dims(); r != g.Batch {
		return 0, nil, shapeErr("graph engine compiled for batch %d, got %d", g.Batch, r)
	}
	params := make([]*mat.Dense, len(net.params))
	for i, p := range net.params {
		params[i] = p.W
	}
	return g.Engine.Gradients(params, x, y)
}
