package extract

import (
	"context"

	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/audio"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/scoring"
)

// LoadReference returns the reference samples for path. MIDI files are rendered
// from their notes; anything else goes through ex.
func LoadReference(ctx context.Context, path string, ex Extractor, opts MIDIOptions) ([]scoring.Sample, error) {
	if audio.IsMIDI(path) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return LoadMIDI(path, opts)
	}
	return ex.Extract(ctx, path)
}
