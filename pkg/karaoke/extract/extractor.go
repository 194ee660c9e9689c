// Package extract turns audio and MIDI files into raw pitch samples.
//
// Audio extraction is selected by Method. The pretrained model methods (crepe,
// basic_pitch) run out of process through a caller-owned Runtime; the yin method runs
// natively and needs no runtime.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/audio"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/scoring"
)

// Method names an extraction algorithm.
type Method string

const (
	Crepe      Method = "crepe"
	BasicPitch Method = "basic_pitch"
	YIN        Method = "yin"
)

// DefaultMethod is used when a request names none.
const DefaultMethod = Crepe

var (
	ErrUnknownMethod  = errors.New("unknown extraction method")
	ErrRuntimeMissing = errors.New("extraction method requires a runtime")
)

// Methods lists every supported method.
func Methods() []Method { return []Method{Crepe, BasicPitch, YIN} }

// IsValid reports whether m is a supported method.
func (m Method) IsValid() bool {
	switch m {
	case Crepe, BasicPitch, YIN:
		return true
	}
	return false
}

// NeedsRuntime reports whether m runs through the external runtime.
func (m Method) NeedsRuntime() bool { return m == Crepe || m == BasicPitch }

// ParseMethod accepts a case-insensitive method name. Empty selects DefaultMethod.
func ParseMethod(s string) (Method, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultMethod, nil
	}
	m := Method(strings.ReplaceAll(s, "-", "_"))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q (valid: crepe, basic_pitch, yin)", ErrUnknownMethod, s)
	}
	return m, nil
}

// Extractor produces raw pitch samples from an audio file.
type Extractor interface {
	Method() Method
	Extract(ctx context.Context, audioPath string) ([]scoring.Sample, error)
}

// Options carries what the individual extractors need.
type Options struct {
	Runtime    *Runtime
	TempDir    string
	SampleRate int
	FFmpegPath string
	YIN        YINParams
}

// New returns the extractor for method.
func New(method Method, opts Options) (Extractor, error) {
	switch method {
	case Crepe, BasicPitch:
		if opts.Runtime == nil {
			return nil, fmt.Errorf("%w: %s", ErrRuntimeMissing, method)
		}
		return &modelExtractor{method: method, rt: opts.Runtime}, nil
	case YIN:
		return &yinExtractor{
			params:  opts.YIN.withDefaults(),
			tempDir: opts.TempDir,
			convert: audio.ConvertWAVConfig{SampleRate: opts.SampleRate, FFmpegPath: opts.FFmpegPath},
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
}
