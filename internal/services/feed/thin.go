package feed

import "github.com/evn/fleet_tracker/internal/models"

// DefaultMaxPoints bounds the positions sent per route.
const DefaultMaxPoints = 300

// Thin reduces positions to at most max samples by keeping every step-th
// one plus the last. The first and last samples always survive. The input
// is not modified.
func Thin(positions []models.Position, max int) []models.Position {
	n := len(positions)
	if max <= 0 || n <= max {
		return positions
	}
	if max == 1 {
		return []models.Position{positions[n-1]}
	}

	step := (n + max - 1) / max
	for {
		kept := (n-1)/step + 1
		if (n-1)%step != 0 {
			kept++ // last sample appended separately
		}
		if kept <= max {
			break
		}
		step++
	}

	out := make([]models.Position, 0, max)
	for i := 0; i < n; i += step {
		out = append(out, positions[i])
	}
	if (n-1)%step != 0 {
		out = append(out, positions[n-1])
	}
	return out
}
