package audio

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndReadWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	tone := Sine(440, 0.5, 8000, 0.5)
	require.NoError(t, WriteWav(path, tone))

	pcm, err := ReadWav(path)
	require.NoError(t, err)

	assert.Equal(t, 8000, pcm.SampleRate)
	assert.Len(t, pcm.Samples, len(tone.Samples))
	assert.InDelta(t, 0.5, pcm.Duration(), 1e-9)
	for i := 0; i < len(tone.Samples); i += 97 {
		assert.InDelta(t, tone.Samples[i], pcm.Samples[i], 1e-3)
	}
}

func TestReadWavInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.wav")
	require.NoError(t, os.WriteFile(path, []byte("INVALID HEADER DATA"), 0o644))

	_, err := ReadWav(path)
	assert.Error(t, err)
}

func TestValidateInput(t *testing.T) {
	dir := t.TempDir()
	wav := filepath.Join(dir, "user.wav")
	mid := filepath.Join(dir, "ref.mid")
	txt := filepath.Join(dir, "notes.txt")
	for _, p := range []string{wav, mid, txt} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	assert.NoError(t, ValidateInput(wav, false))
	assert.NoError(t, ValidateInput(mid, true))
	assert.True(t, errors.Is(ValidateInput(mid, false), ErrUnsupportedFormat))
	assert.True(t, errors.Is(ValidateInput(txt, true), ErrUnsupportedFormat))
	assert.Error(t, ValidateInput(filepath.Join(dir, "missing.wav"), false))
	assert.Error(t, ValidateInput("", false))
}

func TestLoadMonoReadsWavDirectly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	require.NoError(t, WriteWav(path, Sine(220, 0.2, 16000, 0.3)))

	pcm, err := LoadMono(context.Background(), path, t.TempDir(), ConvertWAVConfig{SampleRate: 16000})
	require.NoError(t, err)
	assert.Equal(t, 16000, pcm.SampleRate)
}

func TestConvertToMonoWAV(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	src := filepath.Join(t.TempDir(), "tone.wav")
	require.NoError(t, WriteWav(src, Sine(220, 0.2, 44100, 0.3)))

	out, err := ConvertToMonoWAV(context.Background(), src, t.TempDir(), ConvertWAVConfig{SampleRate: 8000})
	require.NoError(t, err)

	pcm, err := ReadWav(out)
	require.NoError(t, err)
	assert.Equal(t, 8000, pcm.SampleRate)
}

func TestParseProbe(t *testing.T) {
	out := []byte(`{
		"streams": [
			{"codec_type": "video", "codec_name": "png"},
			{"codec_type": "audio", "codec_name": "mp3", "sample_rate": "44100", "channels": 2}
		],
		"format": {"duration": "12.5", "format_name": "mp3", "tags": {"title": "Ballad", "artist": "Someone"}}
	}`)

	meta, err := parseProbe("/music/ballad.mp3", out)
	require.NoError(t, err)
	assert.Equal(t, "ballad.mp3", meta.Filename)
	assert.Equal(t, 44100, meta.SampleRate)
	assert.Equal(t, 2, meta.Channels)
	assert.Equal(t, "mp3", meta.Codec)
	assert.InDelta(t, 12.5, meta.DurationSec, 1e-9)
	assert.Equal(t, "Ballad", meta.Title)

	_, err = parseProbe("x", []byte(`{"streams": [], "format": {}}`))
	assert.ErrorIs(t, err, ErrNoAudioStream)
}

func TestProbeWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	require.NoError(t, WriteWav(path, Sine(440, 1.5, 22050, 0.2)))

	meta, err := ProbeWAV(path)
	require.NoError(t, err)
	assert.Equal(t, "take.wav", meta.Filename)
	assert.Equal(t, 22050, meta.SampleRate)
	assert.Equal(t, 1, meta.Channels)
	assert.Equal(t, 16, meta.BitDepth)
	assert.InDelta(t, 1.5, meta.DurationSec, 1e-3)
}
