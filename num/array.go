package num

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Parameters for array printing
var (
	PrintThreshold = 12
	PrintEdgeitems = 4
)

// String formats a matrix for debug output, large matrices show only the edge items.
func String(m mat.Matrix) string {
	r, c := m.Dims()
	if r > PrintThreshold+1 || c > PrintThreshold+1 {
		return fmt.Sprintf("%7.4g\n", mat.Formatted(m, mat.Excerpt(PrintEdgeitems), mat.Squeeze()))
	}
	return fmt.Sprintf("%7.4g\n", mat.Formatted(m, mat.Squeeze()))
}

// Copy returns a new matrix with the same shape and data as src.
func Copy(src mat.Matrix) *mat.Dense {
	return mat.DenseCopyOf(src)
}

// Raw returns the elements of m in row major order. The slice aliases m if it is contiguous.
func Raw(m *mat.Dense) []float64 {
	raw := m.RawMatrix()
	if raw.Stride == raw.Cols {
		return raw.Data[:raw.Rows*raw.Cols]
	}
	return mat.DenseCopyOf(m).RawMatrix().Data
}

// Total size of one of more matrices in bytes
func Bytes(arr ...*mat.Dense) (bytes int) {
	for _, a := range arr {
		if a != nil {
			r, c := a.Dims()
			bytes += 8 * r * c
		}
	}
	return bytes
}
