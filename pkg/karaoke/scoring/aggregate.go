package scoring

import "math"

// saturationCents is the mean per-step cost at which a curve score drops to 50.
const saturationCents = 100.0

// Weights is the fixed blend behind final_score. The components sum to one.
var Weights = struct {
	Accuracy float64
	DTW      float64
	Pitch    float64
}{
	Accuracy: 0.5,
	DTW:      0.3,
	Pitch:    0.2,
}

// DTWScore maps an accumulated distance to [0, 100]: 100 at zero cost, decaying
// toward 0 as the mean cost per path step grows.
func DTWScore(distance float64, pathLength int) float64 {
	if pathLength <= 0 || distance <= 0 {
		return 100
	}
	return saturate(distance / float64(pathLength))
}

// PitchScore applies the same curve to the mean absolute error.
func PitchScore(maeCents float64) float64 {
	if maeCents <= 0 {
		return 100
	}
	return saturate(maeCents)
}

// FinalScore blends the component scores with Weights.
func FinalScore(accuracy, dtwScore, pitchScore float64) float64 {
	return clampScore(Weights.Accuracy*accuracy + Weights.DTW*dtwScore + Weights.Pitch*pitchScore)
}

// Aggregate turns an alignment and its path statistics into metrics.
func Aggregate(al *Alignment, stats PathStats, duration float64) Metrics {
	dtw := DTWScore(al.Distance, len(al.Path))
	return Metrics{
		FinalScore:  FinalScore(stats.Accuracy, dtw, PitchScore(stats.MAECents)),
		Accuracy:    clampScore(stats.Accuracy),
		DTWScore:    clampScore(dtw),
		DTWDistance: al.Distance,
		MAECents:    stats.MAECents,
		Duration:    duration,
	}
}

func saturate(meanCost float64) float64 {
	if math.IsInf(meanCost, 1) || math.IsNaN(meanCost) {
		return 0
	}
	return clampScore(100 * saturationCents / (saturationCents + meanCost))
}

func clampScore(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
