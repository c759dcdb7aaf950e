// Package tensor implements the dense numeric arrays carried as RPC
// payloads. Fields are exported so values survive the gob round trip.
package tensor

import (
	"encoding/gob"

	"github.com/pkg/errors"
)

func init() {
	gob.Register(Tensor{})
}

// Tensor is a dense float64 array in row-major order.
type Tensor struct {
	Shape []int
	Data  []float64
}

func Zeros(shape ...int) Tensor {
	return Tensor{Shape: shape, Data: make([]float64, size(shape))}
}

func Ones(shape ...int) Tensor {
	return Full(1, shape...)
}

func Full(value float64, shape ...int) Tensor {
	t := Tensor{Shape: shape, Data: make([]float64, size(shape))}
	for i := range t.Data {
		t.Data[i] = value
	}
	return t
}

func size(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func (t Tensor) Size() int {
	return size(t.Shape)
}

// Add returns the elementwise sum. The shapes must match exactly, no
// broadcasting.
func Add(a, b Tensor) (Tensor, error) {
	if !sameShape(a.Shape, b.Shape) {
		return Tensor{}, errors.Errorf(
			"Shape mismatch: %v vs %v.", a.Shape, b.Shape)
	}
	out := Zeros(a.Shape...)
	for i := range a.Data {
		out.Data[i] = a.Data[i] + b.Data[i]
	}
	return out, nil
}

func AddScalar(t Tensor, s float64) Tensor {
	out := Zeros(t.Shape...)
	for i := range t.Data {
		out.Data[i] = t.Data[i] + s
	}
	return out
}

func Scale(t Tensor, s float64) Tensor {
	out := Zeros(t.Shape...)
	for i := range t.Data {
		out.Data[i] = t.Data[i] * s
	}
	return out
}

// Nonzero returns the indices of the non-zero entries as an n-by-ndim
// tensor, one row per hit, in row-major scan order.
func Nonzero(t Tensor) Tensor {
	ndim := len(t.Shape)
	var rows []float64
	for i, v := range t.Data {
		if v == 0 {
			continue
		}
		rem := i
		idx := make([]float64, ndim)
		for d := ndim - 1; d >= 0; d-- {
			idx[d] = float64(rem % t.Shape[d])
			rem /= t.Shape[d]
		}
		rows = append(rows, idx...)
	}
	n := len(rows) / max(ndim, 1)
	return Tensor{Shape: []int{n, ndim}, Data: rows}
}

func Equal(a, b Tensor) bool {
	if !sameShape(a.Shape, b.Shape) {
		return false
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			return false
		}
	}
	return true
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
