package cpu

import (
	"fmt"
)

// rowSize is the number of elements in one row (all axes but the first).
func rowSize(v *value) int {
	return v.dims[1] * v.dims[2] * v.dims[3]
}

func rowIndex(raw float64, rows int) (int, error) {
	i := int(raw)
	if i < 0 || i >= rows {
		return 0, fmt.Errorf("index %d out of range [0, %d)", i, rows)
	}
	return i, nil
}

// gatherKernel copies out[i] = x[idx[i]]; the index is the argument after
// the parent.
func gatherKernel(c *call) error {
	x, idx := c.args[0], c.args[1]
	size := rowSize(x)
	for i, raw := range idx.data {
		r, err := rowIndex(raw, x.dims[0])
		if err != nil {
			return fmt.Errorf("gather: %w", err)
		}
		copy(c.out.data[i*size:(i+1)*size], x.data[r*size:(r+1)*size])
	}
	return nil
}

// scatterAddKernel starts from base and adds rows[i] at idx[i]. Parents are
// base and rows; the index is the argument.
func scatterAddKernel(c *call) error {
	base, rows, idx := c.args[0], c.args[1], c.args[2]
	copy(c.out.data, base.data)
	size := rowSize(base)
	for i, raw := range idx.data {
		r, err := rowIndex(raw, base.dims[0])
		if err != nil {
			return fmt.Errorf("scatter_add: %w", err)
		}
		for j := 0; j < size; j++ {
			c.out.data[r*size+j] += rows.data[i*size+j]
		}
	}
	return nil
}
