package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_ResamplesToCommonRate(t *testing.T) {
	// 100 Hz extractor output over one second.
	raw := make([]Sample, 101)
	for i := range raw {
		raw[i] = Sample{Time: float64(i) / 100, Frequency: 220, Confidence: 0.9}
	}

	c, err := Normalize(raw, DefaultNormalizeOptions())
	require.NoError(t, err)

	assert.Equal(t, 11, c.Len())
	assert.Equal(t, DefaultFrameRate, c.FrameRate)
	assert.InDelta(t, 1.0, c.Duration(), 1e-9)
	for k, f := range c.Frames {
		assert.InDelta(t, float64(k)/10, f.Time, 1e-9)
		assert.True(t, f.Voiced)
		assert.InDelta(t, 220, f.Frequency, 1e-9)
	}
}

func TestNormalize_LowConfidenceBecomesUnvoiced(t *testing.T) {
	raw := constantSamples(5, 440, 0.1)
	raw[2].Confidence = 0.1

	c, err := Normalize(raw, DefaultNormalizeOptions())
	require.NoError(t, err)

	require.Equal(t, 5, c.Len())
	assert.False(t, c.Frames[2].Voiced)
	assert.Equal(t, 0.0, c.Frames[2].Frequency)
	assert.InDelta(t, 0.2, c.Frames[2].Time, 1e-9)
	assert.Equal(t, 4, c.VoicedCount())
}

func TestNormalize_InterpolatesInCents(t *testing.T) {
	raw := []Sample{
		{Time: 0, Frequency: 440, Confidence: 1},
		{Time: 0.2, Frequency: 880, Confidence: 1},
	}

	c, err := Normalize(raw, DefaultNormalizeOptions())
	require.NoError(t, err)

	require.Equal(t, 3, c.Len())
	assert.InDelta(t, 440*math.Sqrt2, c.Frames[1].Frequency, 1e-6)
}

func TestNormalize_LongGapsStaySilent(t *testing.T) {
	raw := []Sample{
		{Time: 0, Frequency: 440, Confidence: 1},
		{Time: 1, Frequency: 440, Confidence: 1},
	}

	c, err := Normalize(raw, DefaultNormalizeOptions())
	require.NoError(t, err)

	require.Equal(t, 11, c.Len())
	assert.True(t, c.Frames[0].Voiced)
	assert.True(t, c.Frames[10].Voiced)
	for _, f := range c.Frames[1:10] {
		assert.False(t, f.Voiced, "frame at %.1f should be silent", f.Time)
	}
}

func TestNormalize_SortsAndDropsBadTimestamps(t *testing.T) {
	raw := []Sample{
		{Time: 0.2, Frequency: 330, Confidence: 1},
		{Time: math.NaN(), Frequency: 330, Confidence: 1},
		{Time: 0, Frequency: 330, Confidence: 1},
		{Time: 0.1, Frequency: 330, Confidence: 1},
		{Time: 0.1, Frequency: 331, Confidence: 1},
	}

	c, err := Normalize(raw, DefaultNormalizeOptions())
	require.NoError(t, err)

	require.Equal(t, 3, c.Len())
	assert.InDelta(t, 331, c.Frames[1].Frequency, 1e-9)
	for k := 1; k < c.Len(); k++ {
		assert.Greater(t, c.Frames[k].Time, c.Frames[k-1].Time)
	}
}

func TestNormalize_EmptyContour(t *testing.T) {
	for name, raw := range map[string][]Sample{
		"no samples":  nil,
		"all silent":  constantSamples(4, 0, 0.1),
		"bad numbers": {{Time: 0, Frequency: math.Inf(1), Confidence: 1}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(raw, DefaultNormalizeOptions())
			var empty *EmptyContourError
			assert.True(t, errors.As(err, &empty))
		})
	}
}

func TestNormalize_RejectsSpanBeyondMaxFrames(t *testing.T) {
	for name, span := range map[string]float64{
		"just over": float64(DefaultMaxFrames) / DefaultFrameRate,
		"hours":     1e5,
		"absurd":    1e13,
	} {
		t.Run(name, func(t *testing.T) {
			raw := []Sample{{Time: 0, Frequency: 440, Confidence: 1}, {Time: span, Frequency: 440, Confidence: 1}}
			c, err := Normalize(raw, DefaultNormalizeOptions())

			var tooLong *ContourTooLongError
			require.True(t, errors.As(err, &tooLong), "got %v", err)
			assert.Equal(t, DefaultMaxFrames, tooLong.MaxFrames)
			assert.Zero(t, c.Len())
		})
	}
}

func TestNormalize_MaxFramesIsInclusive(t *testing.T) {
	raw := constantSamples(30, 440, 0.1)

	c, err := Normalize(raw, NormalizeOptions{MaxFrames: 30})
	require.NoError(t, err)
	assert.Equal(t, 30, c.Len())

	_, err = Normalize(raw, NormalizeOptions{MaxFrames: 29})
	var tooLong *ContourTooLongError
	assert.True(t, errors.As(err, &tooLong))
}

func TestNormalize_DurationUsesRawSpan(t *testing.T) {
	raw := []Sample{
		{Time: 0, Frequency: 440, Confidence: 1},
		{Time: 0.5, Frequency: 440, Confidence: 1},
		{Time: 0.95, Frequency: 440, Confidence: 1},
	}

	c, err := Normalize(raw, DefaultNormalizeOptions())
	require.NoError(t, err)

	assert.Equal(t, 10, c.Len())
	assert.InDelta(t, 0.95, c.Duration(), 1e-9)
}
