// Package stats computes distance and speed figures over position
// sequences.
package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/evn/fleet_tracker/internal/models"
	"github.com/evn/fleet_tracker/internal/pkg/geo"
)

// Stats summarises an ordered position sequence. Speeds are the values
// reported by the device; positions without a speed only count towards
// distance and SampleCount.
type Stats struct {
	TotalKm     float64  `json:"total_km"`
	AvgSpeedKmh *float64 `json:"avg_speed_kmh"`
	MaxSpeedKmh *float64 `json:"max_speed_kmh"`
	SampleCount int      `json:"positions_count"`
}

// Compute expects positions ordered by recorded_at.
func Compute(positions []models.Position) Stats {
	s := Stats{SampleCount: len(positions)}

	speeds := make([]float64, 0, len(positions))
	for i, p := range positions {
		if i > 0 {
			prev := positions[i-1]
			s.TotalKm += geo.DistanceKm(
				geo.Point{Lat: prev.Latitude, Lon: prev.Longitude},
				geo.Point{Lat: p.Latitude, Lon: p.Longitude},
			)
		}
		if p.Speed != nil {
			speeds = append(speeds, *p.Speed)
		}
	}

	if len(speeds) > 0 {
		avg := stat.Mean(speeds, nil)
		peak := floats.Max(speeds)
		s.AvgSpeedKmh = &avg
		s.MaxSpeedKmh = &peak
	}
	return s
}

// Rounded returns a copy with distance and speeds rounded to two decimals
// for presentation.
func (s Stats) Rounded() Stats {
	out := Stats{TotalKm: round2(s.TotalKm), SampleCount: s.SampleCount}
	if s.AvgSpeedKmh != nil {
		v := round2(*s.AvgSpeedKmh)
		out.AvgSpeedKmh = &v
	}
	if s.MaxSpeedKmh != nil {
		v := round2(*s.MaxSpeedKmh)
		out.MaxSpeedKmh = &v
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
