// Package nnet contains routines for constructing, training and testing a one hidden layer
// perceptron with clipped and noise perturbed gradient updates.
package nnet

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/xiyueyiwan/COMP551-Project4/num"
	"github.com/xiyueyiwan/COMP551-Project4/stats"
	"gonum.org/v1/gonum/mat"
)

// Network type represents the multilayer perceptron model: a relu hidden layer followed by
// a softmax output layer.
type Network struct {
	Config
	Layers []Layer
	params []*Param
	nIn    int
	nOut   int
}

// New function creates a new network with nIn inputs and nOut classes. Hidden weights are
// initialised from rng.
func New(conf Config, nIn, nOut int, rng *rand.Rand) (*Network, error) {
	if nIn <= 0 || nOut <= 0 || conf.Hidden <= 0 {
		return nil, shapeErr("network sizes in=%d hidden=%d out=%d", nIn, conf.Hidden, nOut)
	}
	n := &Network{Config: conf, nIn: nIn, nOut: nOut}
	n.Layers = []Layer{
		NewHiddenLayer(nIn, conf.Hidden, rng),
		NewLogRegression(conf.Hidden, nOut),
	}
	for _, layer := range n.Layers {
		n.params = append(n.params, layer.Params()...)
	}
	if conf.DebugLevel >= 2 {
		n.PrintWeights()
	}
	return n, nil
}

// Params returns the weight and bias parameters in W1, b1, W2, b2 order.
func (n *Network) Params() []*Param { return n.params }

// Inputs returns the number of input features
func (n *Network) Inputs() int { return n.nIn }

// Outputs returns the number of classes
func (n *Network) Outputs() int { return n.nOut }

// Accessor for output layer
func (n *Network) OutLayer() OutputLayer {
	return n.Layers[len(n.Layers)-1].(OutputLayer)
}

// Fprop feeds forward the input and returns the output of each layer.
func (n *Network) Fprop(x *mat.Dense) []*mat.Dense {
	outputs := make([]*mat.Dense, len(n.Layers))
	pred := x
	for i, layer := range n.Layers {
		pred = layer.Fprop(pred)
		outputs[i] = pred
	}
	return outputs
}

// Probs returns the class probabilities with one row per example.
func (n *Network) Probs(x *mat.Dense) (*mat.Dense, error) {
	if err := n.checkInput(x); err != nil {
		return nil, err
	}
	out := n.Fprop(x)
	return out[len(out)-1], nil
}

// Predict returns the most probable class for each row of x.
func (n *Network) Predict(x *mat.Dense) ([]int32, error) {
	yPred, err := n.Probs(x)
	if err != nil {
		return nil, err
	}
	r, _ := yPred.Dims()
	classes := make([]int32, r)
	num.Unhot(yPred, classes)
	return classes, nil
}

// Loss returns the negative mean log probability of the true labels.
func (n *Network) Loss(x *mat.Dense, y []int32) (float64, error) {
	if err := n.checkLabels(x, y); err != nil {
		return 0, err
	}
	yPred, _ := n.Probs(x)
	return n.OutLayer().Loss(yPred, y), nil
}

// L2Sqr returns the sum of the squared weights, biases are not included.
func (n *Network) L2Sqr() float64 {
	sum := 0.0
	for _, p := range n.params {
		if strings.HasPrefix(p.Name, "W") {
			sum += num.SumSq(p.W)
		}
	}
	return sum
}

// Cost returns Loss + l2*L2Sqr
func (n *Network) Cost(x *mat.Dense, y []int32, l2 float64) (float64, error) {
	loss, err := n.Loss(x, y)
	if err != nil {
		return 0, err
	}
	return loss + l2*n.L2Sqr(), nil
}

// Error returns the fraction of examples where the predicted class differs from the label.
func (n *Network) Error(x *mat.Dense, y []int32) (float64, error) {
	if err := n.checkLabels(x, y); err != nil {
		return 0, err
	}
	pred, _ := n.Predict(x)
	return float64(num.Neq(pred, y)) / float64(len(y)), nil
}

// SplitError returns the mean of the minibatch errors over every complete batch in the split.
func (n *Network) SplitError(s *Split, batchSize int) (float64, error) {
	nbatch := s.Batches(batchSize)
	if nbatch == 0 {
		return math.NaN(), shapeErr("split of %d examples has no batches of size %d", s.Len(), batchSize)
	}
	var avg stats.Average
	for batch := 0; batch < nbatch; batch++ {
		x, y := s.Batch(batch, batchSize)
		errVal, err := n.Error(x, y)
		if err != nil {
			return math.NaN(), err
		}
		avg.Add(errVal)
		if n.DebugLevel >= 3 {
			fmt.Printf("batch %d error = %.4f\n", batch, errVal)
		}
	}
	return avg.Mean, nil
}

// Clone returns a deep copy of the network.
func (n *Network) Clone() *Network {
	net := &Network{Config: n.Config, nIn: n.nIn, nOut: n.nOut}
	hidden := &HiddenLayer{paramBase: newParams("1", n.nIn, n.Hidden)}
	output := NewLogRegression(n.Hidden, n.nOut)
	net.Layers = []Layer{hidden, output}
	for _, layer := range net.Layers {
		net.params = append(net.params, layer.Params()...)
	}
	n.CopyTo(net)
	return net
}

// Copy weights and bias arrays to destination net
func (n *Network) CopyTo(net *Network) error {
	dst := net.Params()
	if len(dst) != len(n.params) {
		return shapeErr("copy %d params to %d", len(n.params), len(dst))
	}
	for i, p := range n.params {
		if !num.SameShape(num.Dims(p.W), num.Dims(dst[i].W)) {
			return shapeErr("copy %s %v to %v", p.Name, p.Shape(), dst[i].Shape())
		}
	}
	for i, p := range n.params {
		dst[i].W.Copy(p.W)
	}
	return nil
}

// Print network description
func (n *Network) String() string {
	s := make([]string, len(n.Layers))
	shape := []int{n.BatchSize, n.nIn}
	for i, layer := range n.Layers {
		s[i] = fmt.Sprintf("%2d: %-30s %v", i, layer.ToString(), shape)
		shape = layer.OutShape(shape)
	}
	count := 0
	weights := make([]*mat.Dense, len(n.params))
	for i, p := range n.params {
		count += num.Prod(p.Shape())
		weights[i] = p.W
	}
	return fmt.Sprintf("%s\n== Network ==\n%s\n%d parameters, %d bytes", n.Config, strings.Join(s, "\n"), count, num.Bytes(weights...))
}

// Print network weights
func (n *Network) PrintWeights() {
	for _, p := range n.params {
		fmt.Printf("== %s %v ==\n%s\n", p.Name, p.Shape(), num.String(p.W))
	}
}

func (n *Network) checkInput(x *mat.Dense) error {
	if x == nil {
		return shapeErr("nil input")
	}
	if _, c := x.Dims(); c != n.nIn {
		return shapeErr("input has %d features, network expects %d", c, n.nIn)
	}
	return nil
}

func (n *Network) checkLabels(x *mat.Dense, y []int32) error {
	if err := n.checkInput(x); err != nil {
		return err
	}
	if r, _ := x.Dims(); r != len(y) {
		return shapeErr("%d input rows with %d labels", r, len(y))
	}
	for i, label := range y {
		if label < 0 || int(label) >= n.nOut {
			return shapeErr("label %d at %d out of range [0,%d)", label, i, n.nOut)
		}
	}
	return nil
}
