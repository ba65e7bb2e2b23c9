// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

// Package dataset provides the sparse matrices consumed by experiment jobs:
// user-rating-matrix splits and impression-feature matrices.
//
// Dataset readers live outside this repository. This package only knows the
// on-disk layout the readers produce, the feature keys per benchmark, and how
// to check that a dataset is complete before experiments start.
package dataset

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidMatrix is returned when a matrix violates the CSR invariants.
var ErrInvalidMatrix = errors.New("invalid sparse matrix")

// ErrDatasetMissing is returned when required dataset files are absent and no builder can create them.
var ErrDatasetMissing = errors.New("dataset missing")

// Matrix is a sparse matrix in compressed sparse row format.
type Matrix struct {
	Rows    int
	Cols    int
	IndPtr  []int
	Indices []int
	Data    []float64
}

// NewMatrix builds a CSR matrix from coordinate triplets.
// Duplicate coordinates are summed.
func NewMatrix(rows, cols int, rowIdx, colIdx []int, values []float64) (*Matrix, error) {
	if len(rowIdx) != len(colIdx) || len(rowIdx) != len(values) {
		return nil, fmt.Errorf("%w: triplet lengths differ (%d, %d, %d)", ErrInvalidMatrix, len(rowIdx), len(colIdx), len(values))
	}
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("%w: negative shape (%d, %d)", ErrInvalidMatrix, rows, cols)
	}

	type entry struct {
		row, col int
		value    float64
	}
	entries := make([]entry, 0, len(values))
	for i := range values {
		r, c := rowIdx[i], colIdx[i]
		if r < 0 || r >= rows || c < 0 || c >= cols {
			return nil, fmt.Errorf("%w: coordinate (%d, %d) outside shape (%d, %d)", ErrInvalidMatrix, r, c, rows, cols)
		}
		entries = append(entries, entry{row: r, col: c, value: values[i]})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].row != entries[j].row {
			return entries[i].row < entries[j].row
		}
		return entries[i].col < entries[j].col
	})

	m := &Matrix{Rows: rows, Cols: cols, IndPtr: make([]int, rows+1)}
	for i, e := range entries {
		if i > 0 && entries[i-1].row == e.row && entries[i-1].col == e.col {
			m.Data[len(m.Data)-1] += e.value
			continue
		}
		m.Indices = append(m.Indices, e.col)
		m.Data = append(m.Data, e.value)
		m.IndPtr[e.row+1]++
	}
	for r := 0; r < rows; r++ {
		m.IndPtr[r+1] += m.IndPtr[r]
	}

	return m, nil
}

// Shape returns (rows, cols).
func (m *Matrix) Shape() [2]int {
	return [2]int{m.Rows, m.Cols}
}

// NNZ returns the number of stored entries.
func (m *Matrix) NNZ() int {
	return len(m.Data)
}

// At returns the value stored at (row, col), or zero.
func (m *Matrix) At(row, col int) float64 {
	if row < 0 || row >= m.Rows {
		return 0
	}
	lo, hi := m.IndPtr[row], m.IndPtr[row+1]
	i := sort.SearchInts(m.Indices[lo:hi], col)
	if lo+i < hi && m.Indices[lo+i] == col {
		return m.Data[lo+i]
	}
	return 0
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	return &Matrix{
		Rows:    m.Rows,
		Cols:    m.Cols,
		IndPtr:  append([]int(nil), m.IndPtr...),
		Indices: append([]int(nil), m.Indices...),
		Data:    append([]float64(nil), m.Data...),
	}
}

// Validate checks the CSR invariants.
func (m *Matrix) Validate() error {
	if len(m.IndPtr) != m.Rows+1 {
		return fmt.Errorf("%w: indptr has %d entries, want %d", ErrInvalidMatrix, len(m.IndPtr), m.Rows+1)
	}
	if len(m.Indices) != len(m.Data) {
		return fmt.Errorf("%w: %d indices for %d values", ErrInvalidMatrix, len(m.Indices), len(m.Data))
	}
	if m.IndPtr[0] != 0 || m.IndPtr[m.Rows] != len(m.Data) {
		return fmt.Errorf("%w: indptr bounds [%d, %d] for %d values", ErrInvalidMatrix, m.IndPtr[0], m.IndPtr[m.Rows], len(m.Data))
	}
	for r := 0; r < m.Rows; r++ {
		if m.IndPtr[r] > m.IndPtr[r+1] {
			return fmt.Errorf("%w: indptr decreases at row %d", ErrInvalidMatrix, r)
		}
		for i := m.IndPtr[r]; i < m.IndPtr[r+1]; i++ {
			if m.Indices[i] < 0 || m.Indices[i] >= m.Cols {
				return fmt.Errorf("%w: column %d outside %d columns", ErrInvalidMatrix, m.Indices[i], m.Cols)
			}
			if i > m.IndPtr[r] && m.Indices[i] <= m.Indices[i-1] {
				return fmt.Errorf("%w: unsorted columns in row %d", ErrInvalidMatrix, r)
			}
		}
	}
	return nil
}

// Split names one of the user-rating-matrix splits.
type Split string

// URM splits.
const (
	SplitTrain           Split = "train"
	SplitValidation      Split = "validation"
	SplitTest            Split = "test"
	SplitTrainValidation Split = "train_validation"
)

// AllSplits returns every URM split.
func AllSplits() []Split {
	return []Split{SplitTrain, SplitValidation, SplitTest, SplitTrainValidation}
}

// Splits holds the user-rating-matrix splits of one benchmark and evaluation strategy.
type Splits struct {
	Train           *Matrix
	Validation      *Matrix
	Test            *Matrix
	TrainValidation *Matrix
}

// Get returns the matrix of a split.
func (s *Splits) Get(split Split) *Matrix {
	switch split {
	case SplitTrain:
		return s.Train
	case SplitValidation:
		return s.Validation
	case SplitTest:
		return s.Test
	case SplitTrainValidation:
		return s.TrainValidation
	default:
		return nil
	}
}

// Shapes returns the shape of every split, for logging.
func (s *Splits) Shapes() map[Split][2]int {
	out := make(map[Split][2]int, 4)
	for _, split := range AllSplits() {
		if m := s.Get(split); m != nil {
			out[split] = m.Shape()
		}
	}
	return out
}
