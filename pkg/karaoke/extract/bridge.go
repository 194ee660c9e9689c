package extract

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/scoring"
)

// helperFrames is the helper's stdout document.
type helperFrames struct {
	Time       []float64 `json:"time"`
	Frequency  []float64 `json:"frequency"`
	Confidence []float64 `json:"confidence"`
}

type modelExtractor struct {
	method Method
	rt     *Runtime
}

func (m *modelExtractor) Method() Method { return m.method }

func (m *modelExtractor) Extract(ctx context.Context, audioPath string) ([]scoring.Sample, error) {
	out, err := m.rt.Run(ctx, m.method, audioPath)
	if err != nil {
		return nil, err
	}
	return decodeFrames(out)
}

func decodeFrames(out []byte) ([]scoring.Sample, error) {
	var doc helperFrames
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("decoding helper output: %w", err)
	}
	n := len(doc.Time)
	if len(doc.Frequency) != n || len(doc.Confidence) != n {
		return nil, fmt.Errorf("helper output length mismatch: time=%d frequency=%d confidence=%d",
			n, len(doc.Frequency), len(doc.Confidence))
	}

	samples := make([]scoring.Sample, n)
	for i := range samples {
		samples[i] = scoring.Sample{
			Time:       doc.Time[i],
			Frequency:  doc.Frequency[i],
			Confidence: doc.Confidence[i],
		}
	}
	return samples, nil
}
