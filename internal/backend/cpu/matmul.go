package cpu

import (
	"errors"
	"math"

	"github.com/born-ml/symgraph/internal/parallel"
)

var errSingular = errors.New("matrix is singular")

// matmulKernel computes (M, K) @ (K, N) -> (M, N) with a naive triple loop,
// splitting output rows across workers.
func matmulKernel(c *call) error {
	a, b := c.args[0], c.args[1]
	m, k, n := a.dims[0], a.dims[1], b.dims[1]
	return parallel.Rows(m, k*n, c.par, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			for j := 0; j < n; j++ {
				var sum float64
				for l := 0; l < k; l++ {
					sum += a.data[i*k+l] * b.data[l*n+j]
				}
				c.out.data[i*n+j] = sum
			}
		}
		return nil
	})
}

// solveKernel solves A X = B by Gaussian elimination with partial pivoting.
func solveKernel(c *call) error {
	a, b := c.args[0], c.args[1]
	return solveInto(c.out.data, a.data, b.data, a.dims[0], b.dims[1])
}

// inverseKernel solves A X = I.
func inverseKernel(c *call) error {
	a := c.args[0]
	n := a.dims[0]
	eye := make([]float64, n*n)
	for i := 0; i < n; i++ {
		eye[i*n+i] = 1
	}
	return solveInto(c.out.data, a.data, eye, n, n)
}

// solveInto writes the (n, r) solution of a x = b into out. a and b are
// left untouched.
func solveInto(out, a, b []float64, n, r int) error {
	m := append([]float64(nil), a...)
	copy(out, b)

	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(m[row*n+col]) > math.Abs(m[pivot*n+col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot*n+col]) < 1e-12 {
			return errSingular
		}
		if pivot != col {
			for j := 0; j < n; j++ {
				m[col*n+j], m[pivot*n+j] = m[pivot*n+j], m[col*n+j]
			}
			for j := 0; j < r; j++ {
				out[col*r+j], out[pivot*r+j] = out[pivot*r+j], out[col*r+j]
			}
		}
		for row := col + 1; row < n; row++ {
			f := m[row*n+col] / m[col*n+col]
			if f == 0 {
				continue
			}
			for j := col; j < n; j++ {
				m[row*n+j] -= f * m[col*n+j]
			}
			for j := 0; j < r; j++ {
				out[row*r+j] -= f * out[col*r+j]
			}
		}
	}

	for row := n - 1; row >= 0; row-- {
		for j := 0; j < r; j++ {
			sum := out[row*r+j]
			for k := row + 1; k < n; k++ {
				sum -= m[row*n+k] * out[k*r+j]
			}
			out[row*r+j] = sum / m[row*n+row]
		}
	}
	return nil
}
