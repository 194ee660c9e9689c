package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/audio"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/scoring"
)

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, Crepe, m)

	m, err = ParseMethod(" Basic-Pitch ")
	require.NoError(t, err)
	assert.Equal(t, BasicPitch, m)

	_, err = ParseMethod("pyin")
	assert.ErrorIs(t, err, ErrUnknownMethod)

	assert.True(t, Crepe.NeedsRuntime())
	assert.False(t, YIN.NeedsRuntime())
}

func TestNewRequiresRuntimeForModels(t *testing.T) {
	_, err := New(Crepe, Options{})
	assert.ErrorIs(t, err, ErrRuntimeMissing)

	ex, err := New(YIN, Options{})
	require.NoError(t, err)
	assert.Equal(t, YIN, ex.Method())

	_, err = New(Method("nope"), Options{})
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func writeInterpreter(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-python")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestRuntimeRunsHelper(t *testing.T) {
	python := writeInterpreter(t, `[ -f "$1" ] || { echo "helper missing" >&2; exit 2; }
echo '{"time":[0,0.01,0.02],"frequency":[440,441,0],"confidence":[0.9,0.8,0.1]}'
`)

	rt, err := NewRuntime(RuntimeConfig{Python: python, WorkDir: t.TempDir()})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(rt.Dir(), helperName))

	ex, err := New(Crepe, Options{Runtime: rt})
	require.NoError(t, err)

	samples, err := ex.Extract(context.Background(), "song.wav")
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, scoring.Sample{Time: 0.01, Frequency: 441, Confidence: 0.8}, samples[1])

	require.NoError(t, rt.Close())
	assert.NoDirExists(t, rt.Dir())

	_, err = rt.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrRuntimeClosed)
	assert.NoError(t, rt.Close())
}

func TestRuntimeReportsHelperFailure(t *testing.T) {
	python := writeInterpreter(t, `echo "Traceback" >&2
echo "ModuleNotFoundError: No module named 'crepe'" >&2
exit 1
`)
	rt, err := NewRuntime(RuntimeConfig{Python: python, WorkDir: t.TempDir()})
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.Run(context.Background(), Crepe, "song.wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No module named 'crepe'")
}

func TestRuntimeAcquireHonorsContext(t *testing.T) {
	rt, err := NewRuntime(RuntimeConfig{Python: "unused", WorkDir: t.TempDir()})
	require.NoError(t, err)
	defer rt.Close()

	release, err := rt.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rt.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	release()
	release()

	again, err := rt.Acquire(context.Background())
	require.NoError(t, err)
	again()
}

func TestDecodeFramesLengthMismatch(t *testing.T) {
	_, err := decodeFrames([]byte(`{"time":[0,1],"frequency":[440],"confidence":[1,1]}`))
	assert.Error(t, err)

	_, err = decodeFrames([]byte(`not json`))
	assert.Error(t, err)
}

func TestDetectPitchSine(t *testing.T) {
	tone := audio.Sine(440, 0.5, 16000, 0.5)
	samples := DetectPitch(tone, DefaultYINParams())
	require.NotEmpty(t, samples)

	voiced := 0
	for _, s := range samples {
		if s.Frequency == 0 {
			continue
		}
		voiced++
		assert.InDelta(t, 440, s.Frequency, 2)
		assert.Greater(t, s.Confidence, 0.8)
	}
	assert.Equal(t, len(samples), voiced)
	assert.InDelta(t, 0.01, samples[1].Time-samples[0].Time, 1e-9)
}

func TestDetectPitchSilence(t *testing.T) {
	silence := &audio.PCM{Samples: make([]float64, 8000), SampleRate: 16000}
	for _, s := range DetectPitch(silence, DefaultYINParams()) {
		assert.Zero(t, s.Frequency)
		assert.Zero(t, s.Confidence)
	}

	assert.Nil(t, DetectPitch(&audio.PCM{Samples: make([]float64, 100), SampleRate: 16000}, DefaultYINParams()))
}

func TestYINExtractorReadsWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.wav")
	require.NoError(t, audio.WriteWav(path, audio.Sine(330, 0.4, 16000, 0.4)))

	ex, err := New(YIN, Options{TempDir: t.TempDir(), SampleRate: 16000})
	require.NoError(t, err)

	samples, err := ex.Extract(context.Background(), path)
	require.NoError(t, err)
	require.NotEmpty(t, samples)
	assert.InDelta(t, 330, samples[len(samples)/2].Frequency, 2)
}
