// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

// Series holds the rolling power window: real trainer input and the
// modified output, in lockstep. Both rings are prefilled with zeros so the
// window length never changes.
type Series struct {
	real   []float64
	output []float64
	head   int // index of the oldest sample
}

// NewSeries creates a window of n samples (DefaultHistory when n <= 0)
func NewSeries(n int) *Series {
	if n <= 0 {
		n = DefaultHistory
	}
	return &Series{
		real:   make([]float64, n),
		output: make([]float64, n),
	}
}

// Push evicts the oldest sample of each series and appends the new pair
func (s *Series) Push(real, output float64) {
	s.real[s.head] = real
	s.output[s.head] = output
	s.head = (s.head + 1) % len(s.real)
}

// Len returns the window length
func (s *Series) Len() int {
	return len(s.real)
}

// Real returns the input window, oldest first
func (s *Series) Real() []float64 {
	return s.unroll(s.real)
}

// Output returns the output window, oldest first
func (s *Series) Output() []float64 {
	return s.unroll(s.output)
}

// Latest returns the newest pair
func (s *Series) Latest() (real, output float64) {
	i := (s.head - 1 + len(s.real)) % len(s.real)
	return s.real[i], s.output[i]
}

// Max returns the largest sample across both series, for axis scaling
func (s *Series) Max() float64 {
	max := 0.0
	for i := range s.real {
		if s.real[i] > max {
			max = s.real[i]
		}
		if s.output[i] > max {
			max = s.output[i]
		}
	}
	return max
}

func (s *Series) unroll(ring []float64) []float64 {
	out := make([]float64, 0, len(ring))
	out = append(out, ring[s.head:]...)
	out = append(out, ring[:s.head]...)
	return out
}
