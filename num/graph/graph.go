// Package graph computes the cost and parameter gradients of a one hidden layer
// perceptron using a gorgonia expression graph and tape machine.
package graph

import (
	"fmt"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"gonum.org/v1/gonum/mat"
)

// Engine holds a compiled graph for a fixed batch size and layer sizes.
// Parameter order is W1, b1, W2, b2 with biases stored as 1 x n matrices.
type Engine struct {
	Batch, Nin, Nhidden, Nout int
	g       *G.ExprGraph
	x, y    *G.Node
	params  []*G.Node
	cost    *G.Node
	costVal G.Value
	vm      G.VM
}

// New builds the graph for cost = -mean(log p[y]) + l2*(sum(W1^2) + sum(W2^2)).
func New(batch, nIn, nHidden, nOut int, l2 float64) (*Engine, error) {
	if batch <= 0 || nIn <= 0 || nHidden <= 0 || nOut <= 0 {
		return nil, errors.Errorf("graph: invalid sizes batch=%d in=%d hidden=%d out=%d", batch, nIn, nHidden, nOut)
	}
	g := G.NewGraph()
	e := &Engine{Batch: batch, Nin: nIn, Nhidden: nHidden, Nout: nOut, g: g}
	e.x = matrix(g, "x", batch, nIn)
	e.y = matrix(g, "y", batch, nOut)
	w1 := matrix(g, "W1", nIn, nHidden)
	b1 := matrix(g, "b1", 1, nHidden)
	w2 := matrix(g, "W2", nHidden, nOut)
	b2 := matrix(g, "b2", 1, nOut)
	e.params = []*G.Node{w1, b1, w2, b2}

	var err error
	if e.cost, err = buildCost(e.x, e.y, w1, b1, w2, b2, batch, l2); err != nil {
		return nil, errors.Wrap(err, "graph: build cost")
	}
	G.Read(e.cost, &e.costVal)
	if _, err = G.Grad(e.cost, e.params...); err != nil {
		return nil, errors.Wrap(err, "graph: symbolic gradient")
	}
	e.vm = G.NewTapeMachine(g, G.BindDualValues(e.params...))
	return e, nil
}

func matrix(g *G.ExprGraph, name string, rows, cols int) *G.Node {
	return G.NewMatrix(g, tensor.Float64, G.WithShape(rows, cols), G.WithName(name), G.WithInit(G.Zeroes()))
}

func buildCost(x, y, w1, b1, w2, b2 *G.Node, batch int, l2 float64) (*G.Node, error) {
	z1, err := G.Mul(x, w1)
	if err != nil {
		return nil, err
	}
	if z1, err = G.BroadcastAdd(z1, b1, nil, []byte{0}); err != nil {
		return nil, err
	}
	h, err := G.Rectify(z1)
	if err != nil {
		return nil, err
	}
	z2, err := G.Mul(h, w2)
	if err != nil {
		return nil, err
	}
	if z2, err = G.BroadcastAdd(z2, b2, nil, []byte{0}); err != nil {
		return nil, err
	}
	prob, err := G.SoftMax(z2)
	if err != nil {
		return nil, err
	}
	logp, err := G.Log(prob)
	if err != nil {
		return nil, err
	}
	picked, err := G.HadamardProd(logp, y)
	if err != nil {
		return nil, err
	}
	total, err := G.Sum(picked)
	if err != nil {
		return nil, err
	}
	nll, err := G.Div(total, G.NewConstant(-float64(batch)))
	if err != nil {
		return nil, err
	}
	sq1, err := sumSquares(w1)
	if err != nil {
		return nil, err
	}
	sq2, err := sumSquares(w2)
	if err != nil {
		return nil, err
	}
	reg, err := G.Add(sq1, sq2)
	if err != nil {
		return nil, err
	}
	if reg, err = G.Mul(reg, G.NewConstant(l2)); err != nil {
		return nil, err
	}
	return G.Add(nll, reg)
}

func sumSquares(w *G.Node) (*G.Node, error) {
	sq, err := G.Square(w)
	if err != nil {
		return nil, err
	}
	return G.Sum(sq)
}

// Gradients runs the graph on one batch and returns the cost and a gradient matrix for
// each of the params, which must be given in W1, b1, W2, b2 order.
func (e *Engine) Gradients(params []*mat.Dense, x *mat.Dense, y []int32) (float64, []*mat.Dense, error) {
	if len(params) != len(e.params) {
		return 0, nil, errors.Errorf("graph: got %d parameters, expect %d", len(params), len(e.params))
	}
	if r, c := x.Dims(); r != e.Batch || c != e.Nin || len(y) != e.Batch {
		return 0, nil, errors.Errorf("graph: batch shape [%d %d] with %d labels, expect [%d %d]", r, c, len(y), e.Batch, e.Nin)
	}
	if err := load(e.x, x); err != nil {
		return 0, nil, err
	}
	if err := loadLabels(e.y, y, e.Nout); err != nil {
		return 0, nil, err
	}
	for i, p := range params {
		if err := load(e.params[i], p); err != nil {
			return 0, nil, err
		}
	}
	if err := e.zeroGrads(); err != nil {
		return 0, nil, err
	}
	defer e.vm.Reset()
	if err := e.vm.RunAll(); err != nil {
		return 0, nil, errors.Wrap(err, "graph: run")
	}
	grads := make([]*mat.Dense, len(params))
	for i, n := range e.params {
		gv, err := n.Grad()
		if err != nil {
			return 0, nil, errors.Wrapf(err, "graph: gradient of %s", n.Name())
		}
		data, ok := gv.Data().([]float64)
		if !ok {
			return 0, nil, errors.Errorf("graph: gradient of %s has type %T", n.Name(), gv.Data())
		}
		r, c := params[i].Dims()
		grads[i] = mat.NewDense(r, c, append([]float64(nil), data...))
	}
	cost, ok := e.costVal.Data().(float64)
	if !ok {
		return 0, nil, errors.Errorf("graph: cost has type %T", e.costVal.Data())
	}
	return cost, grads, nil
}

// the dual values bound to the params accumulate, so clear them before each run
func (e *Engine) zeroGrads() error {
	for _, n := range e.params {
		gv, err := n.Grad()
		if err != nil {
			return errors.Wrapf(err, "graph: gradient of %s", n.Name())
		}
		data, ok := gv.Data().([]float64)
		if !ok {
			return errors.Errorf("graph: gradient of %s has type %T", n.Name(), gv.Data())
		}
		for i := range data {
			data[i] = 0
		}
	}
	return nil
}

// copy matrix data into the tensor bound to the node
func load(n *G.Node, m *mat.Dense) error {
	dst, err := backing(n)
	if err != nil {
		return err
	}
	r, c := m.Dims()
	if len(dst) != r*c {
		return errors.Errorf("graph: %s has %d elements, got [%d %d]", n.Name(), len(dst), r, c)
	}
	for i := 0; i < r; i++ {
		copy(dst[i*c:(i+1)*c], m.RawRowView(i))
	}
	return nil
}

func loadLabels(n *G.Node, y []int32, classes int) error {
	dst, err := backing(n)
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = 0
	}
	for i, label := range y {
		if label < 0 || int(label) >= classes {
			return errors.Errorf("graph: label %d out of range [0,%d)", label, classes)
		}
		dst[i*classes+int(label)] = 1
	}
	return nil
}

func backing(n *G.Node) ([]float64, error) {
	v := n.Value()
	if v == nil {
		return nil, errors.Errorf("graph: node %s has no value", n.Name())
	}
	data, ok := v.Data().([]float64)
	if !ok {
		return nil, errors.Errorf("graph: node %s has data type %T", n.Name(), v.Data())
	}
	return data, nil
}

func (e *Engine) String() string {
	return fmt.Sprintf("graph engine batch=%d in=%d hidden=%d out=%d nodes=%d", e.Batch, e.Nin, e.Nhidden, e.Nout, len(e.g.AllNodes()))
}
