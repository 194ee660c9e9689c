package scoring

import "math"

// DefaultUnvoicedPenaltyCents is the cost of pairing a voiced frame with a silent one.
const DefaultUnvoicedPenaltyCents = 1200.0

// Cents returns the signed pitch distance from fRef to fUser, 1200*log2(fUser/fRef).
func Cents(fUser, fRef float64) float64 {
	return 1200 * math.Log2(fUser/fRef)
}

// FoldOctave maps a cents distance into [-600, 600] by removing whole octaves.
func FoldOctave(cents float64) float64 {
	return math.Remainder(cents, 1200)
}

// SignedDistance is the cents distance between two voiced frames under the policy's
// octave handling.
func SignedDistance(user, ref PitchFrame, policy Policy) float64 {
	d := Cents(user.Frequency, ref.Frequency)
	if policy.FoldOctaves {
		d = FoldOctave(d)
	}
	return d
}

// DistanceFunc is the pairwise cost used by the aligner.
type DistanceFunc func(i, j int) float64

// FrameDistance builds the aligner's cost function for two contours. Voiced pairs cost
// their absolute cents distance, a voiced frame against a silent one costs the policy's
// penalty, and two silent frames cost nothing.
func FrameDistance(user, ref Contour, policy Policy) DistanceFunc {
	penalty := policy.UnvoicedPenaltyCents
	if penalty <= 0 {
		penalty = DefaultUnvoicedPenaltyCents
	}
	return func(i, j int) float64 {
		u, r := user.Frames[i], ref.Frames[j]
		switch {
		case u.Voiced && r.Voiced:
			return math.Abs(SignedDistance(u, r, policy))
		case u.Voiced != r.Voiced:
			return penalty
		default:
			return 0
		}
	}
}
