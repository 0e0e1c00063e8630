// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package matrix implements the master/worker matrix-multiplication
// demonstrator described by the requirements: a master that distributes
// rows of A and chunks of work through a tuplespace server, and workers
// that claim chunks, compute C = A*B, and publish result rows back.
package matrix

import (
	"encoding/binary"
	"math"
	"math/rand"
)

// Matrix is a dense row-major matrix of float64 values.
type Matrix struct {
	Rows, Cols int
	Data       []float64
}

// NewMatrix allocates a zeroed rows x cols Matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// At returns the value at (row, col).
func (m *Matrix) At(row, col int) float64 {
	return m.Data[row*m.Cols+col]
}

// Set assigns the value at (row, col).
func (m *Matrix) Set(row, col int, v float64) {
	m.Data[row*m.Cols+col] = v
}

// Row returns the raw backing slice for row i, without copying.
func (m *Matrix) Row(i int) []float64 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// Generate fills m with random values in [0, 9), matching the source's
// generate_matrix.
func Generate(rows, cols int, rng *rand.Rand) *Matrix {
	m := NewMatrix(rows, cols)
	for i := range m.Data {
		m.Data[i] = rng.Float64() * 9
	}
	return m
}

// MultiplyRow computes row = a . B for a single row of A against the
// whole of B, using the source's k-then-j loop order (accumulate each
// term of the dot product across every output column before moving to
// the next term), which is friendlier to B's row-major layout than the
// naive i-j-k order.
func MultiplyRow(a []float64, b *Matrix) []float64 {
	out := make([]float64, b.Cols)
	for k, aVal := range a {
		if aVal == 0 {
			continue
		}
		bRow := b.Row(k)
		for j, bVal := range bRow {
			out[j] += aVal * bVal
		}
	}
	return out
}

// EncodeRow serializes a row of float64s as big-endian bytes for PUT.
func EncodeRow(row []float64) []byte {
	buf := make([]byte, 8*len(row))
	for i, v := range row {
		binary.BigEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// DecodeRow deserializes bytes produced by EncodeRow.
func DecodeRow(buf []byte) []float64 {
	row := make([]float64, len(buf)/8)
	for i := range row {
		row[i] = math.Float64frombits(binary.BigEndian.Uint64(buf[i*8:]))
	}
	return row
}
