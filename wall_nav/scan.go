package wall_nav

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Sector is a contiguous index window of a ranging frame.
type Sector struct {
	Start int
	End   int // exclusive
}

// Len returns the number of samples covered by the sector.
func (s Sector) Len() int {
	return s.End - s.Start
}

// FrontSector returns the middle third of a frame with n samples.
func FrontSector(n int) Sector {
	return Sector{Start: n / 3, End: 2 * n / 3}
}

// SectorReading is the obstacle summary of one sector.
type SectorReading struct {
	Sector      Sector
	Valid       int
	Invalid     int
	MinDistance float64
}

// ValidSample reports whether a sample can take part in the minimum.
// +Inf is a legal "no return" reading.
func ValidSample(v float64) bool {
	return !math.IsNaN(v) && v >= 0
}

// ReadFrontSector summarizes the front sector of a frame.
//
// ok is false when the sector holds no valid sample; callers must then skip the frame.
func ReadFrontSector(frame RangingFrame) (reading SectorReading, ok bool) {
	sector := FrontSector(len(frame.Ranges))
	reading = SectorReading{Sector: sector, MinDistance: math.Inf(1)}
	if sector.Len() <= 0 {
		return reading, false
	}

	samples := make([]float64, 0, sector.Len())
	for _, v := range frame.Ranges[sector.Start:sector.End] {
		if !ValidSample(v) {
			reading.Invalid++
			continue
		}
		samples = append(samples, v)
	}
	reading.Valid = len(samples)
	if len(samples) == 0 {
		return reading, false
	}
	// floats.Min panics on an empty slice, guarded above.
	reading.MinDistance = floats.Min(samples)
	return reading, true
}
