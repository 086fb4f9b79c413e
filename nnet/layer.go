package nnet

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/xiyueyiwan/COMP551-Project4/num"
	"gonum.org/v1/gonum/mat"
)

// Param is a named weight matrix or 1 x n bias vector owned by a layer.
type Param struct {
	Name string
	W    *mat.Dense
}

// Shape returns rows, cols
func (p *Param) Shape() []int { return num.Dims(p.W) }

// Layer interface type represents one layer of the neural net.
// Fprop does not modify the layer. Bprop takes the layer input, its output and the gradient
// with respect to the output and returns the input gradient and one gradient per parameter.
type Layer interface {
	OutShape(inShape []int) []int
	Fprop(in *mat.Dense) *mat.Dense
	Bprop(in, out, grad *mat.Dense) (dsrc *mat.Dense, dparams []*mat.Dense)
	Params() []*Param
	ToString() string
}

// OutputLayer is the final layer in the stack. Its Bprop expects the gradient with
// respect to the pre-activation input as returned by LossGrad.
type OutputLayer interface {
	Layer
	Loss(yPred *mat.Dense, y []int32) float64
	LossGrad(yPred *mat.Dense, y []int32) *mat.Dense
}

// HiddenLayer is a fully connected layer with relu activation: relu(in·W + b)
type HiddenLayer struct {
	paramBase
}

// NewHiddenLayer creates the layer with weights drawn uniformly from
// ±sqrt(2/(nIn+nOut)) and zero bias.
func NewHiddenLayer(nIn, nOut int, rng *rand.Rand) *HiddenLayer {
	l := &HiddenLayer{paramBase: newParams("1", nIn, nOut)}
	bound := math.Sqrt(2 / float64(nIn+nOut))
	num.Uniform(l.w.W, -bound, bound, rng)
	return l
}

func (l *HiddenLayer) ToString() string {
	return fmt.Sprintf("hidden %d -> %d relu", l.nIn, l.nOut)
}

func (l *HiddenLayer) Fprop(in *mat.Dense) *mat.Dense {
	out := l.linear(in)
	num.Relu(out, out)
	return out
}

func (l *HiddenLayer) Bprop(in, out, grad *mat.Dense) (*mat.Dense, []*mat.Dense) {
	r, c := grad.Dims()
	dz := mat.NewDense(r, c, nil)
	num.ReluD(dz, out, grad)
	return l.linearGrad(in, dz)
}

// LogRegression is the output layer with softmax activation: softmax(in·W + b)
type LogRegression struct {
	paramBase
}

// NewLogRegression creates the layer with zero weights and bias.
func NewLogRegression(nIn, nOut int) *LogRegression {
	return &LogRegression{paramBase: newParams("2", nIn, nOut)}
}

func (l *LogRegression) ToString() string {
	return fmt.Sprintf("logRegression %d -> %d softmax", l.nIn, l.nOut)
}

func (l *LogRegression) Fprop(in *mat.Dense) *mat.Dense {
	out := l.linear(in)
	num.Softmax(out, out)
	return out
}

func (l *LogRegression) Bprop(in, out, grad *mat.Dense) (*mat.Dense, []*mat.Dense) {
	return l.linearGrad(in, grad)
}

// Loss returns the negative mean log probability of the true class.
func (l *LogRegression) Loss(yPred *mat.Dense, y []int32) float64 {
	sum := 0.0
	for i, label := range y {
		sum += math.Log(yPred.At(i, int(label)))
	}
	return -sum / float64(len(y))
}

// LossGrad returns (yPred - onehot(y)) / batch size.
func (l *LogRegression) LossGrad(yPred *mat.Dense, y []int32) *mat.Dense {
	grad := mat.DenseCopyOf(yPred)
	grad.Sub(grad, num.Onehot(y, l.nOut))
	grad.Scale(1/float64(len(y)), grad)
	return grad
}

// weight and bias parameters
type paramBase struct {
	nIn, nOut int
	w, b      *Param
}

func newParams(suffix string, nIn, nOut int) paramBase {
	return paramBase{
		nIn:  nIn,
		nOut: nOut,
		w:    &Param{Name: "W" + suffix, W: mat.NewDense(nIn, nOut, nil)},
		b:    &Param{Name: "b" + suffix, W: mat.NewDense(1, nOut, nil)},
	}
}

func (p paramBase) Params() []*Param { return []*Param{p.w, p.b} }

func (p paramBase) OutShape(inShape []int) []int {
	return []int{inShape[0], p.nOut}
}

func (p paramBase) linear(in *mat.Dense) *mat.Dense {
	r, _ := in.Dims()
	out := mat.NewDense(r, p.nOut, nil)
	out.Mul(in, p.w.W)
	num.AddRow(out, p.b.W)
	return out
}

func (p paramBase) linearGrad(in, dz *mat.Dense) (*mat.Dense, []*mat.Dense) {
	r, _ := in.Dims()
	dw := mat.NewDense(p.nIn, p.nOut, nil)
	dw.Mul(in.T(), dz)
	db := mat.NewDense(1, p.nOut, nil)
	num.SumRows(db, dz)
	dsrc := mat.NewDense(r, p.nIn, nil)
	dsrc.Mul(dz, p.w.W.T())
	return dsrc, []*mat.Dense{dw, db}
}
