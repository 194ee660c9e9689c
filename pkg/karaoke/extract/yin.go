package extract

import (
	"context"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/audio"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/scoring"
)

// YINParams tunes the native detector.
type YINParams struct {
	FrameSize int     // analysis window in samples
	HopSize   int     // samples between frames
	Threshold float64 // CMNDF dip threshold
	MinFreq   float64
	MaxFreq   float64
	// SilenceRMS marks frames quieter than this as unvoiced.
	SilenceRMS float64
}

// DefaultYINParams suit 16 kHz vocal audio with a 10 ms hop.
func DefaultYINParams() YINParams {
	return YINParams{
		FrameSize:  2048,
		HopSize:    160,
		Threshold:  0.15,
		MinFreq:    60,
		MaxFreq:    2000,
		SilenceRMS: 1e-3,
	}
}

func (p YINParams) withDefaults() YINParams {
	d := DefaultYINParams()
	if p.FrameSize <= 0 {
		p.FrameSize = d.FrameSize
	}
	if p.HopSize <= 0 {
		p.HopSize = d.HopSize
	}
	if p.Threshold <= 0 {
		p.Threshold = d.Threshold
	}
	if p.MinFreq <= 0 {
		p.MinFreq = d.MinFreq
	}
	if p.MaxFreq <= 0 {
		p.MaxFreq = d.MaxFreq
	}
	if p.SilenceRMS <= 0 {
		p.SilenceRMS = d.SilenceRMS
	}
	return p
}

type yinExtractor struct {
	params  YINParams
	tempDir string
	convert audio.ConvertWAVConfig
}

func (y *yinExtractor) Method() Method { return YIN }

func (y *yinExtractor) Extract(ctx context.Context, audioPath string) ([]scoring.Sample, error) {
	pcm, err := audio.LoadMono(ctx, audioPath, y.tempDir, y.convert)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return DetectPitch(pcm, y.params), nil
}

// DetectPitch runs YIN over pcm, one sample per hop. Frame times are the window start.
func DetectPitch(pcm *audio.PCM, params YINParams) []scoring.Sample {
	p := params.withDefaults()
	if pcm == nil || pcm.SampleRate <= 0 || len(pcm.Samples) < p.FrameSize {
		return nil
	}

	sr := float64(pcm.SampleRate)
	tauMin := max(2, int(sr/p.MaxFreq))
	tauMax := min(p.FrameSize/2, int(math.Ceil(sr/p.MinFreq))+1)
	if tauMin >= tauMax {
		return nil
	}

	count := (len(pcm.Samples)-p.FrameSize)/p.HopSize + 1
	out := make([]scoring.Sample, 0, count)
	for k := 0; k < count; k++ {
		start := k * p.HopSize
		freq, conf := detectFrame(pcm.Samples[start:start+p.FrameSize], sr, tauMin, tauMax, p)
		out = append(out, scoring.Sample{
			Time:       float64(start) / sr,
			Frequency:  freq,
			Confidence: conf,
		})
	}
	return out
}

func detectFrame(frame []float64, sr float64, tauMin, tauMax int, p YINParams) (float64, float64) {
	if rms(frame) < p.SilenceRMS {
		return 0, 0
	}

	cmndf := normalizedDifference(frame, tauMax)

	tau := -1
	for t := tauMin; t < tauMax; t++ {
		if cmndf[t] < p.Threshold {
			for t+1 < tauMax && cmndf[t+1] < cmndf[t] {
				t++
			}
			tau = t
			break
		}
	}
	if tau < 0 {
		best := tauMin
		for t := tauMin + 1; t < tauMax; t++ {
			if cmndf[t] < cmndf[best] {
				best = t
			}
		}
		return 0, clamp01(1 - cmndf[best])
	}

	period := float64(tau)
	if tau > 0 && tau+1 < tauMax {
		s0, s1, s2 := cmndf[tau-1], cmndf[tau], cmndf[tau+1]
		if den := s0 - 2*s1 + s2; den != 0 {
			period += (s0 - s2) / (2 * den)
		}
	}
	if period <= 0 {
		return 0, 0
	}
	return sr / period, clamp01(1 - cmndf[tau])
}

// normalizedDifference returns the cumulative mean normalized difference for lags
// [0, tauMax). The autocorrelation term comes from an FFT of the zero padded frame.
func normalizedDifference(frame []float64, tauMax int) []float64 {
	n := len(frame)
	size := 1
	for size < 2*n {
		size <<= 1
	}
	padded := make([]float64, size)
	copy(padded, frame)

	power := fft.FFTReal(padded)
	for i, c := range power {
		power[i] = c * cmplx.Conj(c)
	}
	acf := fft.IFFT(power)

	// prefix[i] = sum of frame[:i] squared
	prefix := make([]float64, n+1)
	for i, v := range frame {
		prefix[i+1] = prefix[i] + v*v
	}

	diff := make([]float64, tauMax)
	for tau := 1; tau < tauMax; tau++ {
		head := prefix[n-tau]
		tail := prefix[n] - prefix[tau]
		diff[tau] = head + tail - 2*real(acf[tau])
	}

	cmndf := make([]float64, tauMax)
	cmndf[0] = 1
	running := 0.0
	for tau := 1; tau < tauMax; tau++ {
		running += diff[tau]
		if running <= 0 {
			cmndf[tau] = 1
			continue
		}
		cmndf[tau] = diff[tau] * float64(tau) / running
	}
	return cmndf
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

