// Package num contains numeric matrix routines used by the network layers.
// Matrices are gonum dense matrices stored in row major order with one example per row.
package num

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Dims returns the shape of the matrix in rows, cols order
func Dims(m mat.Matrix) []int {
	r, c := m.Dims()
	return []int{r, c}
}

// Relu rectified linear activation function: dst = max(x, 0), NaN inputs propagate.
func Relu(dst, x *mat.Dense) {
	dst.Apply(func(i, j int, v float64) float64 {
		if v <= 0 {
			return 0
		}
		return v
	}, x)
}

// ReluD sets dst to grad where the activation output y is positive and to zero elsewhere.
func ReluD(dst, y, grad *mat.Dense) {
	if !SameShape(Dims(y), Dims(grad)) {
		panic("ReluD: arrays must be same shape")
	}
	dst.Apply(func(i, j int, v float64) float64 {
		if y.At(i, j) > 0 {
			return v
		}
		return 0
	}, grad)
}

// Softmax activation function applied to each row of x.
func Softmax(dst, x *mat.Dense) {
	r, c := x.Dims()
	if dr, dc := dst.Dims(); dr != r || dc != c {
		panic("Softmax: arrays must be same shape")
	}
	for i := 0; i < r; i++ {
		row := dst.RawRowView(i)
		copy(row, x.RawRowView(i))
		max := floats.Max(row)
		for j := range row {
			row[j] = math.Exp(row[j] - max)
		}
		floats.Scale(1/floats.Sum(row), row)
	}
}

// AddRow adds the 1 x n row vector b to every row of dst.
func AddRow(dst, b *mat.Dense) {
	br, bc := b.Dims()
	r, c := dst.Dims()
	if br != 1 || bc != c {
		panic(fmt.Sprintf("AddRow: cannot broadcast %v to %v", Dims(b), Dims(dst)))
	}
	bias := b.RawRowView(0)
	for i := 0; i < r; i++ {
		floats.Add(dst.RawRowView(i), bias)
	}
}

// SumRows sets the 1 x n matrix dst to the column sums of x.
func SumRows(dst, x *mat.Dense) {
	r, c := x.Dims()
	if dr, dc := dst.Dims(); dr != 1 || dc != c {
		panic("SumRows: destination must be a row vector")
	}
	out := dst.RawRowView(0)
	for j := range out {
		out[j] = 0
	}
	for i := 0; i < r; i++ {
		floats.Add(out, x.RawRowView(i))
	}
}

// Onehot converts integer labels to a one hot matrix with one row per label.
func Onehot(y []int32, classes int) *mat.Dense {
	m := mat.NewDense(len(y), classes, nil)
	for i, label := range y {
		m.Set(i, int(label), 1)
	}
	return m
}

// Unhot sets classes to the index of the maximum value in each row of x.
func Unhot(x *mat.Dense, classes []int32) {
	r, _ := x.Dims()
	if len(classes) != r {
		panic("Unhot: invalid array shape")
	}
	for i := range classes {
		classes[i] = int32(floats.MaxIdx(x.RawRowView(i)))
	}
}

// Neq returns the number of elements where x != y
func Neq(x, y []int32) int {
	if len(x) != len(y) {
		panic("Neq: arrays must be same shape")
	}
	n := 0
	for i := range x {
		if x[i] != y[i] {
			n++
		}
	}
	return n
}

// Clip limits every element of m to the closed range [lo, hi].
// NaN values are left unchanged.
func Clip(m *mat.Dense, lo, hi float64) {
	m.Apply(func(i, j int, v float64) float64 {
		switch {
		case v < lo:
			return lo
		case v > hi:
			return hi
		}
		return v
	}, m)
}

// SumSq returns the sum of the squared elements.
func SumSq(m *mat.Dense) float64 {
	r, _ := m.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		sum += floats.Dot(row, row)
	}
	return sum
}

// Finite reports whether every element is neither NaN nor infinite.
func Finite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Product of elements of an integer array. Zero dimension array (scalar) has size 1.
func Prod(arr []int) int {
	prod := 1
	for _, v := range arr {
		prod *= v
	}
	return prod
}

// Check if two arrays are the same shape
func SameShape(xd, yd []int) bool {
	if len(xd) != len(yd) {
		return false
	}
	for i := range xd {
		if xd[i] != yd[i] {
			return false
		}
	}
	return true
}
