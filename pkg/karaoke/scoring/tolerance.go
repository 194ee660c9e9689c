package scoring

import "math"

// PathStats summarizes the voiced pairs along an alignment path.
type PathStats struct {
	PathLength  int
	VoicedPairs int
	Hits        int
	Accuracy    float64   // 100 * Hits / VoicedPairs
	MAECents    float64   // mean |deviation| over voiced pairs
	Deviations  []float64 // signed cents per voiced pair, in path order
	UserPitches []float64 // user frequency per voiced pair
	RefPitches  []float64 // reference frequency per voiced pair
}

// EvaluatePath classifies every voiced pair on the path as a hit or a miss under the
// policy's tolerance. Pairs with a silent side are skipped entirely.
func EvaluatePath(user, ref Contour, path []Step, policy Policy) (PathStats, error) {
	stats := PathStats{PathLength: len(path)}
	var sumAbs float64

	for _, st := range path {
		u, r := user.Frames[st.User], ref.Frames[st.Ref]
		if !u.Voiced || !r.Voiced {
			continue
		}
		d := SignedDistance(u, r, policy)
		stats.VoicedPairs++
		if math.Abs(d) <= policy.ToleranceCents {
			stats.Hits++
		}
		sumAbs += math.Abs(d)
		stats.Deviations = append(stats.Deviations, d)
		stats.UserPitches = append(stats.UserPitches, u.Frequency)
		stats.RefPitches = append(stats.RefPitches, r.Frequency)
	}

	if stats.VoicedPairs == 0 {
		return stats, &NoVoicedOverlapError{PathLength: len(path)}
	}
	stats.Accuracy = 100 * float64(stats.Hits) / float64(stats.VoicedPairs)
	stats.MAECents = sumAbs / float64(stats.VoicedPairs)
	return stats, nil
}
