package wall_nav

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestFrontSector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n    int
		want Sector
	}{
		{0, Sector{0, 0}},
		{1, Sector{0, 0}},
		{2, Sector{0, 1}},
		{3, Sector{1, 2}},
		{9, Sector{3, 6}},
		{10, Sector{3, 6}},
		{360, Sector{120, 240}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, FrontSector(tt.n)); diff != "" {
			t.Errorf("FrontSector(%d) mismatch (-want +got):\n%s", tt.n, diff)
		}
	}
}

func TestReadFrontSector(t *testing.T) {
	t.Parallel()

	inf := math.Inf(1)
	nan := math.NaN()

	t.Run("minimum of middle third", func(t *testing.T) {
		t.Parallel()
		// Side samples are closer but outside the front sector.
		frame := RangingFrame{Ranges: []float64{0.1, 0.1, 0.1, 2.0, 0.8, 1.5, 0.1, 0.1, 0.1}}
		r, ok := ReadFrontSector(frame)
		assert.True(t, ok)
		assert.Equal(t, 0.8, r.MinDistance)
		assert.Equal(t, 3, r.Valid)
		assert.Equal(t, 0, r.Invalid)
	})

	t.Run("infinite samples are far readings", func(t *testing.T) {
		t.Parallel()
		r, ok := ReadFrontSector(RangingFrame{Ranges: []float64{1, 1, 1, inf, inf, inf, 1, 1, 1}})
		assert.True(t, ok)
		assert.True(t, math.IsInf(r.MinDistance, 1))
	})

	t.Run("invalid samples are ignored", func(t *testing.T) {
		t.Parallel()
		r, ok := ReadFrontSector(RangingFrame{Ranges: []float64{1, 1, 1, nan, -1, 0.7, 1, 1, 1}})
		assert.True(t, ok)
		assert.Equal(t, 0.7, r.MinDistance)
		assert.Equal(t, 2, r.Invalid)
	})

	t.Run("all invalid", func(t *testing.T) {
		t.Parallel()
		_, ok := ReadFrontSector(RangingFrame{Ranges: []float64{1, 1, 1, nan, nan, -2, 1, 1, 1}})
		assert.False(t, ok)
	})

	t.Run("empty sector", func(t *testing.T) {
		t.Parallel()
		_, ok := ReadFrontSector(RangingFrame{Ranges: []float64{0.1}})
		assert.False(t, ok)
		_, ok = ReadFrontSector(RangingFrame{})
		assert.False(t, ok)
	})

	t.Run("zero distance is valid", func(t *testing.T) {
		t.Parallel()
		r, ok := ReadFrontSector(RangingFrame{Ranges: []float64{1, 0, 1}})
		assert.True(t, ok)
		assert.Equal(t, 0.0, r.MinDistance)
	})
}
