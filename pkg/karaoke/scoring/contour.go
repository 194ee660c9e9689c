package scoring

import (
	"math"
	"sort"
)

const (
	// DefaultFrameRate is the common rate both contours are resampled to before alignment.
	DefaultFrameRate = 10.0
	// DefaultMinConfidence marks frames below it as unvoiced.
	DefaultMinConfidence = 0.5
	// DefaultMaxGap is the widest span (seconds) between two voiced samples that is still interpolated.
	DefaultMaxGap = 0.25
	// DefaultMaxFrames bounds the grid length: 20 minutes at the default frame rate.
	DefaultMaxFrames = 12000
)

// Sample is one raw (time, frequency, confidence) point as produced by an extractor.
// A non-positive frequency means the extractor heard no pitch.
type Sample struct {
	Time       float64 `json:"time"`
	Frequency  float64 `json:"frequency"`
	Confidence float64 `json:"confidence"`
}

// PitchFrame is a single frame of a normalized contour.
type PitchFrame struct {
	Time       float64
	Frequency  float64
	Voiced     bool
	Confidence float64
}

// Contour is a uniform-rate sequence of frames with strictly increasing timestamps.
type Contour struct {
	Frames    []PitchFrame
	FrameRate float64
	Span      float64 // seconds between the first and last raw sample
}

// Len returns the number of frames.
func (c Contour) Len() int { return len(c.Frames) }

// Duration is the raw sample span when known, else the span of the grid frames.
// The grid stops at the last whole frame, so it can be up to one period shorter.
func (c Contour) Duration() float64 {
	if c.Span > 0 {
		return c.Span
	}
	if len(c.Frames) < 2 {
		return 0
	}
	return c.Frames[len(c.Frames)-1].Time - c.Frames[0].Time
}

// VoicedCount returns how many frames carry a pitch.
func (c Contour) VoicedCount() int {
	n := 0
	for _, f := range c.Frames {
		if f.Voiced {
			n++
		}
	}
	return n
}

// NormalizeOptions controls resampling and voicing.
type NormalizeOptions struct {
	FrameRate     float64
	MinConfidence float64
	MaxGap        float64
	MaxFrames     int
}

// DefaultNormalizeOptions returns the options used when none are supplied.
func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{
		FrameRate:     DefaultFrameRate,
		MinConfidence: DefaultMinConfidence,
		MaxGap:        DefaultMaxGap,
		MaxFrames:     DefaultMaxFrames,
	}
}

func (o NormalizeOptions) withDefaults() NormalizeOptions {
	if o.FrameRate <= 0 {
		o.FrameRate = DefaultFrameRate
	}
	if o.MinConfidence < 0 {
		o.MinConfidence = 0
	}
	if o.MaxGap <= 0 {
		o.MaxGap = DefaultMaxGap
	}
	if o.MaxFrames <= 0 {
		o.MaxFrames = DefaultMaxFrames
	}
	return o
}

// Normalize resamples raw samples onto a uniform grid at opts.FrameRate starting at the
// first sample. Low-confidence and pitchless samples become unvoiced frames instead of
// being dropped, so time alignment is preserved. A contour with no voiced frame is an
// *EmptyContourError. A span needing more than opts.MaxFrames frames is a
// *ContourTooLongError and nothing is allocated for it.
func Normalize(samples []Sample, opts NormalizeOptions) (Contour, error) {
	opts = opts.withDefaults()

	clean := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if math.IsNaN(s.Time) || math.IsInf(s.Time, 0) || s.Time < 0 {
			continue
		}
		clean = append(clean, s)
	}
	if len(clean) == 0 {
		return Contour{FrameRate: opts.FrameRate}, &EmptyContourError{Samples: len(samples)}
	}

	sort.SliceStable(clean, func(i, j int) bool { return clean[i].Time < clean[j].Time })
	clean = dedupeTimes(clean)

	voiced := make([]bool, len(clean))
	for i, s := range clean {
		voiced[i] = isVoiced(s, opts.MinConfidence)
	}

	start := clean[0].Time
	span := clean[len(clean)-1].Time - start
	grid := math.Floor(span*opts.FrameRate+1e-9) + 1
	if grid > float64(opts.MaxFrames) {
		return Contour{FrameRate: opts.FrameRate}, &ContourTooLongError{
			Seconds: span, Frames: grid, MaxFrames: opts.MaxFrames,
		}
	}
	n := int(grid)
	halfPeriod := 0.5 / opts.FrameRate

	frames := make([]PitchFrame, n)
	hi := 0
	for k := 0; k < n; k++ {
		t := start + float64(k)/opts.FrameRate
		for hi < len(clean) && clean[hi].Time < t-1e-9 {
			hi++
		}
		frames[k] = frameAt(t, hi, clean, voiced, opts.MaxGap, halfPeriod)
	}

	c := Contour{Frames: frames, FrameRate: opts.FrameRate, Span: span}
	if c.VoicedCount() == 0 {
		return c, &EmptyContourError{Samples: len(samples)}
	}
	return c, nil
}

// frameAt builds the grid frame at t. hi is the first sample with time >= t.
func frameAt(t float64, hi int, s []Sample, voiced []bool, maxGap, halfPeriod float64) PitchFrame {
	unvoiced := PitchFrame{Time: t}

	if hi < len(s) && math.Abs(s[hi].Time-t) <= 1e-9 {
		return frameFrom(t, s[hi], voiced[hi])
	}

	lo := hi - 1
	if lo >= 0 && hi < len(s) && voiced[lo] && voiced[hi] && s[hi].Time-s[lo].Time <= maxGap {
		a, b := s[lo], s[hi]
		w := (t - a.Time) / (b.Time - a.Time)
		cents := w * Cents(b.Frequency, a.Frequency)
		return PitchFrame{
			Time:       t,
			Frequency:  a.Frequency * math.Pow(2, cents/1200),
			Voiced:     true,
			Confidence: a.Confidence + w*(b.Confidence-a.Confidence),
		}
	}

	nearest := -1
	best := halfPeriod
	if lo >= 0 && t-s[lo].Time <= best {
		nearest, best = lo, t-s[lo].Time
	}
	if hi < len(s) && s[hi].Time-t < best {
		nearest = hi
	}
	if nearest < 0 {
		return unvoiced
	}
	return frameFrom(t, s[nearest], voiced[nearest])
}

func frameFrom(t float64, s Sample, voiced bool) PitchFrame {
	if !voiced {
		return PitchFrame{Time: t, Confidence: clampUnit(s.Confidence)}
	}
	return PitchFrame{Time: t, Frequency: s.Frequency, Voiced: true, Confidence: clampUnit(s.Confidence)}
}

func isVoiced(s Sample, minConfidence float64) bool {
	if s.Frequency <= 0 || math.IsNaN(s.Frequency) || math.IsInf(s.Frequency, 0) {
		return false
	}
	return s.Confidence >= minConfidence
}

// dedupeTimes keeps the last sample of every run of equal timestamps. Input must be sorted.
func dedupeTimes(s []Sample) []Sample {
	out := s[:0]
	for i := range s {
		if len(out) > 0 && out[len(out)-1].Time == s[i].Time {
			out[len(out)-1] = s[i]
			continue
		}
		out = append(out, s[i])
	}
	return out
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
