package scoring

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Advisor thresholds, in cents unless noted.
const (
	excellentDeviation = 50.0
	goodDeviation      = 100.0
	poorDeviation      = 200.0
	biasThreshold      = 50.0
	unstableRatio      = 2.0
	stableRatio        = 0.5
	largeErrorShare    = 0.3
	goodShare          = 0.5
	narrowRange        = 0.7
	wideRange          = 1.3
	missedPeakRatio    = 0.7
	minPeakPairs       = 10
)

// FeedbackStats are the numbers behind a Feedback.
type FeedbackStats struct {
	AvgDeviationCents float64 `json:"avg_deviation_cents"`
	MeanBiasCents     float64 `json:"mean_bias_cents"`
	StabilityRatio    float64 `json:"stability_ratio"`
	LargeErrorPercent float64 `json:"large_error_percent"`
	GoodPercent       float64 `json:"good_percent"`
	UserRangeCents    float64 `json:"user_range_cents"`
	RefRangeCents     float64 `json:"ref_range_cents"`
	UserPeaks         int     `json:"user_peaks"`
	RefPeaks          int     `json:"ref_peaks"`
}

// Feedback is singing advice derived from an evaluation.
type Feedback struct {
	Strengths []string      `json:"strengths"`
	Issues    []string      `json:"issues"`
	Advice    []string      `json:"advice"`
	Stats     FeedbackStats `json:"stats"`
}

// Advise inspects the voiced pairs of an evaluation and describes bias, stability,
// range, and error spread relative to the tolerance.
func Advise(ev *Evaluation) Feedback {
	fb := Feedback{Strengths: []string{}, Issues: []string{}, Advice: []string{}}
	st := ev.Stats
	if len(st.Deviations) == 0 {
		fb.Advice = append(fb.Advice, "Not enough voiced overlap to analyze.")
		return fb
	}
	tol := ev.Policy.ToleranceCents

	abs := make([]float64, len(st.Deviations))
	for i, d := range st.Deviations {
		abs[i] = math.Abs(d)
	}
	userCents := toCents(st.UserPitches)
	refCents := toCents(st.RefPitches)

	s := FeedbackStats{
		AvgDeviationCents: stat.Mean(abs, nil),
		MeanBiasCents:     stat.Mean(st.Deviations, nil),
		StabilityRatio:    1,
		UserRangeCents:    floats.Max(userCents) - floats.Min(userCents),
		RefRangeCents:     floats.Max(refCents) - floats.Min(refCents),
	}
	if len(userCents) > 1 {
		if refVar := stat.PopVariance(refCents, nil); refVar > 0 {
			s.StabilityRatio = stat.PopVariance(userCents, nil) / refVar
		}
	}

	var large, good int
	for _, a := range abs {
		if a > 2*tol {
			large++
		}
		if a <= 0.5*tol {
			good++
		}
	}
	s.LargeErrorPercent = 100 * float64(large) / float64(len(abs))
	s.GoodPercent = 100 * float64(good) / float64(len(abs))

	switch {
	case s.AvgDeviationCents < excellentDeviation:
		fb.Strengths = append(fb.Strengths, "Pitch accuracy is excellent.")
	case s.AvgDeviationCents < goodDeviation:
		fb.Strengths = append(fb.Strengths, "Pitch accuracy is good.")
	case s.AvgDeviationCents > poorDeviation:
		fb.Issues = append(fb.Issues, "Average pitch deviation is large")
		fb.Advice = append(fb.Advice, fmt.Sprintf("Aim closer to the melody: you are off by %.1f cents (about %.1f semitones) on average.",
			s.AvgDeviationCents, s.AvgDeviationCents/100))
	}

	switch {
	case s.MeanBiasCents > biasThreshold:
		fb.Issues = append(fb.Issues, "Singing sharp")
		fb.Advice = append(fb.Advice, fmt.Sprintf("You sing about %.1f cents above the reference. Try bringing your pitch down slightly.", s.MeanBiasCents))
	case s.MeanBiasCents < -biasThreshold:
		fb.Issues = append(fb.Issues, "Singing flat")
		fb.Advice = append(fb.Advice, fmt.Sprintf("You sing about %.1f cents below the reference. Try lifting your pitch slightly.", -s.MeanBiasCents))
	}

	switch {
	case s.StabilityRatio > unstableRatio:
		fb.Issues = append(fb.Issues, "Unstable pitch")
		fb.Advice = append(fb.Advice, "Your pitch wavers more than the melody. Practice holding long notes steady.")
	case s.StabilityRatio < stableRatio:
		fb.Strengths = append(fb.Strengths, "Pitch is very steady.")
	}

	if s.LargeErrorPercent > largeErrorShare*100 {
		fb.Issues = append(fb.Issues, fmt.Sprintf("%.1f%% of the song has large errors", s.LargeErrorPercent))
		fb.Advice = append(fb.Advice, "Work through the passages with large errors slowly before singing them at tempo.")
	}
	if s.GoodPercent > goodShare*100 {
		fb.Strengths = append(fb.Strengths, fmt.Sprintf("%.1f%% of the song is sung precisely.", s.GoodPercent))
	}

	switch {
	case s.UserRangeCents < s.RefRangeCents*narrowRange:
		fb.Issues = append(fb.Issues, "Pitch range narrower than the reference")
		fb.Advice = append(fb.Advice, "You compress the melody's range. Reach further for the high and low notes.")
	case s.UserRangeCents > s.RefRangeCents*wideRange:
		fb.Issues = append(fb.Issues, "Pitch range wider than the reference")
		fb.Advice = append(fb.Advice, "You overshoot the melody's range. Focus on landing the main notes.")
	}

	if len(userCents) > minPeakPairs {
		s.UserPeaks = countPeaks(userCents)
		s.RefPeaks = countPeaks(refCents)
		if s.UserPeaks > 0 && s.RefPeaks > 0 && float64(s.UserPeaks) < float64(s.RefPeaks)*missedPeakRatio {
			fb.Issues = append(fb.Issues, "Missing melodic accents")
			fb.Advice = append(fb.Advice, "Some accents of the melody are flattened out. Watch the high notes and peaks.")
		}
	}

	if len(fb.Advice) == 0 {
		fb.Advice = append(fb.Advice, "Great job, keep it up!")
	}
	fb.Stats = s
	return fb
}

// toCents expresses frequencies relative to A4.
func toCents(hz []float64) []float64 {
	out := make([]float64, len(hz))
	for i, f := range hz {
		out[i] = Cents(f, 440)
	}
	return out
}

// countPeaks counts strict local maxima that rise half a standard deviation above the mean.
func countPeaks(x []float64) int {
	if len(x) < 3 {
		return 0
	}
	mean, std := stat.MeanStdDev(x, nil)
	floor := mean + 0.5*std
	n := 0
	for i := 1; i < len(x)-1; i++ {
		if x[i] > x[i-1] && x[i] > x[i+1] && x[i] > floor {
			n++
		}
	}
	return n
}
