// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeriesStartsZeroFilled(t *testing.T) {
	s := NewSeries(5)

	assert.Equal(t, 5, s.Len())
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, s.Real())
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, s.Output())
	assert.Equal(t, 0.0, s.Max())
}

func TestSeriesDefaultLength(t *testing.T) {
	assert.Equal(t, DefaultHistory, NewSeries(0).Len())
	assert.Equal(t, DefaultHistory, NewSeries(-3).Len())
}

func TestSeriesPushEvictsOldest(t *testing.T) {
	s := NewSeries(3)

	for i := 1; i <= 5; i++ {
		s.Push(float64(i), float64(i*10))
		assert.Equal(t, 3, s.Len())
		assert.Len(t, s.Real(), 3)
		assert.Len(t, s.Output(), 3)
	}

	assert.Equal(t, []float64{3, 4, 5}, s.Real())
	assert.Equal(t, []float64{30, 40, 50}, s.Output())

	real, out := s.Latest()
	assert.Equal(t, 5.0, real)
	assert.Equal(t, 50.0, out)
	assert.Equal(t, 50.0, s.Max())
}

func TestSeriesWindowIsACopy(t *testing.T) {
	s := NewSeries(2)
	s.Push(1, 2)

	window := s.Real()
	window[0] = 99

	assert.Equal(t, []float64{0, 1}, s.Real())
}
