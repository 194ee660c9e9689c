package audio

import (
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWav encodes pcm as a 16-bit mono PCM WAV file.
func WriteWav(path string, pcm *PCM) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, pcm.SampleRate, 16, 1, 1)
	data := make([]int, len(pcm.Samples))
	for i, s := range pcm.Samples {
		data[i] = int(math.Round(math.Max(-1, math.Min(1, s)) * math.MaxInt16))
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: pcm.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encoding wav: %w", err)
	}
	return enc.Close()
}

// Sine renders a sine tone, useful for fixtures and calibration.
func Sine(freq, seconds float64, sampleRate int, amplitude float64) *PCM {
	n := int(seconds * float64(sampleRate))
	s := make([]float64, n)
	for i := range s {
		s[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return &PCM{Samples: s, SampleRate: sampleRate}
}
