// Package charge integrates pulse current over time and summarizes the
// resulting charge distribution.
package charge

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/hpungsan/pulsekit/internal/errors"
	"github.com/hpungsan/pulsekit/internal/pulse"
)

// histogramMargin widens the histogram range on both sides, as a fraction of
// the data span.
const histogramMargin = 0.05

// Compute returns the charge of p in coulombs: the trapezoidal integral of
// current over time. A single-sample pulse has zero charge.
func Compute(p pulse.Pulse) float64 {
	t, i := p.Time(), p.Current()
	var q float64
	for k := 1; k < len(t); k++ {
		q += (t[k] - t[k-1]) * (i[k] + i[k-1]) / 2
	}
	return q
}

// ComputeAll returns one charge per pulse, in order.
func ComputeAll(pulses []pulse.Pulse) ([]float64, error) {
	if len(pulses) == 0 {
		return nil, errors.NewValidation("pulse list must not be empty")
	}
	out := make([]float64, len(pulses))
	for k, p := range pulses {
		out[k] = Compute(p)
	}
	return out, nil
}

// Stats summarizes a charge distribution. Std is the population standard
// deviation.
type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	Unit   string  `json:"unit"`
}

// Summarize computes the statistics of charges.
func Summarize(charges []float64) (Stats, error) {
	if len(charges) == 0 {
		return Stats{}, errors.NewValidation("charge list must not be empty")
	}
	mean, std := stat.PopMeanStdDev(charges, nil)
	return Stats{
		Count:  len(charges),
		Mean:   mean,
		Std:    std,
		Min:    floats.Min(charges),
		Max:    floats.Max(charges),
		Median: median(charges),
		Unit:   "C",
	}, nil
}

// median averages the two middle values for even-sized input.
func median(x []float64) float64 {
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Histogram is a binned charge distribution in scaled units.
type Histogram struct {
	Edges   []float64 `json:"edges"`
	Counts  []float64 `json:"counts"`
	Density []float64 `json:"density"`
	Scale   float64   `json:"unit_scale"`
}

// NewHistogram bins charges*scale into bins equal-width bins spanning the data
// range widened by 5 % on each side.
func NewHistogram(charges []float64, bins int, scale float64) (Histogram, error) {
	if len(charges) == 0 {
		return Histogram{}, errors.NewValidation("charge list must not be empty")
	}
	if bins <= 0 {
		return Histogram{}, errors.NewInvalidRequest("bins must be > 0")
	}
	if scale == 0 {
		scale = 1
	}

	scaled := make([]float64, len(charges))
	floats.ScaleTo(scaled, scale, charges)
	if k := firstNonFinite(scaled); k >= 0 {
		return Histogram{}, errors.NewValidation(fmt.Sprintf("charge %d is not finite: %v", k, scaled[k]))
	}
	sort.Float64s(scaled)

	lo, hi := scaled[0], scaled[len(scaled)-1]
	margin := histogramMargin * (hi - lo)
	if margin == 0 {
		margin = math.Max(math.Abs(lo)*histogramMargin, 0.5)
	}
	edges := make([]float64, bins+1)
	floats.Span(edges, lo-margin, hi+margin)
	if !increasing(edges) || lo < edges[0] || hi >= edges[bins] {
		return Histogram{}, errors.NewValidation(fmt.Sprintf("charge range [%v, %v] cannot be binned", lo, hi))
	}

	counts := stat.Histogram(nil, edges, scaled, nil)

	width := edges[1] - edges[0]
	density := make([]float64, len(counts))
	for k, c := range counts {
		density[k] = c / (float64(len(scaled)) * width)
	}

	return Histogram{Edges: edges, Counts: counts, Density: density, Scale: scale}, nil
}

// firstNonFinite returns the index of the first NaN or infinite value, or -1.
func firstNonFinite(x []float64) int {
	for k, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return k
		}
	}
	return -1
}

// increasing reports whether edges are finite and strictly increasing, as
// stat.Histogram requires.
func increasing(edges []float64) bool {
	if firstNonFinite(edges) >= 0 {
		return false
	}
	for k := 1; k < len(edges); k++ {
		if edges[k] <= edges[k-1] {
			return false
		}
	}
	return true
}
