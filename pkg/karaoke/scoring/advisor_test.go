package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvise_PerfectPerformance(t *testing.T) {
	s := melodySamples([]float64{261.63, 329.63, 392, 329.63}, 5)
	ev, err := Evaluate(s, s, Options{Difficulty: Normal})
	require.NoError(t, err)

	fb := Advise(ev)
	assert.Contains(t, fb.Strengths, "Pitch accuracy is excellent.")
	assert.Empty(t, fb.Issues)
	assert.Equal(t, []string{"Great job, keep it up!"}, fb.Advice)
	assert.InDelta(t, 100, fb.Stats.GoodPercent, 1e-9)
	assert.InDelta(t, 1, fb.Stats.StabilityRatio, 1e-9)
}

func TestAdvise_DetectsSharpSinging(t *testing.T) {
	ref := constantSamples(20, 440, 0.1)
	user := constantSamples(20, 440*math.Pow(2, 80.0/1200), 0.1)
	ev, err := Evaluate(user, ref, Options{Difficulty: Normal})
	require.NoError(t, err)

	fb := Advise(ev)
	assert.Contains(t, fb.Issues, "Singing sharp")
	assert.InDelta(t, 80, fb.Stats.MeanBiasCents, 0.01)
	assert.Contains(t, fb.Strengths, "Pitch accuracy is good.")
}

func TestAdvise_DetectsFlatAndLargeErrors(t *testing.T) {
	ref := constantSamples(20, 440, 0.1)
	user := constantSamples(20, 440*math.Pow(2, -300.0/1200), 0.1)
	ev, err := Evaluate(user, ref, Options{Difficulty: Hard})
	require.NoError(t, err)

	fb := Advise(ev)
	assert.Contains(t, fb.Issues, "Singing flat")
	assert.Contains(t, fb.Issues, "Average pitch deviation is large")
	assert.InDelta(t, 100, fb.Stats.LargeErrorPercent, 1e-9)
	assert.NotEmpty(t, fb.Advice)
}

func TestAdvise_NoVoicedPairs(t *testing.T) {
	fb := Advise(&Evaluation{})
	assert.Equal(t, []string{"Not enough voiced overlap to analyze."}, fb.Advice)
}
