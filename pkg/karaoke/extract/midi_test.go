package extract

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/scoring"
)

const quarter = 96

// writeSong writes a 120 bpm file with a vocal line (A4, rest, C5), a drum track
// and a sustained piano E5.
func writeSong(t *testing.T) string {
	t.Helper()

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(quarter)

	var vocal smf.Track
	vocal.Add(0, smf.MetaTrackSequenceName("Lead Vocal"))
	vocal.Add(0, smf.MetaTempo(120))
	vocal.Add(0, midi.NoteOn(0, 69, 100))
	vocal.Add(quarter, midi.NoteOff(0, 69))
	vocal.Add(quarter, midi.NoteOn(0, 72, 100))
	vocal.Add(quarter, midi.NoteOff(0, 72))
	vocal.Close(0)

	var drums smf.Track
	drums.Add(0, smf.MetaTrackSequenceName("Kit"))
	drums.Add(0, midi.NoteOn(9, 36, 120))
	drums.Add(quarter, midi.NoteOff(9, 36))
	drums.Close(0)

	var piano smf.Track
	piano.Add(0, smf.MetaTrackSequenceName("Piano"))
	piano.Add(0, midi.NoteOn(1, 76, 80))
	piano.Add(3*quarter, midi.NoteOff(1, 76))
	piano.Close(0)

	for _, tr := range []smf.Track{vocal, drums, piano} {
		require.NoError(t, s.Add(tr))
	}

	path := filepath.Join(t.TempDir(), "song.mid")
	require.NoError(t, s.WriteFile(path))
	return path
}

func TestLoadMIDIAutoSelectsVocal(t *testing.T) {
	samples, err := LoadMIDI(writeSong(t), MIDIOptions{})
	require.NoError(t, err)
	require.Len(t, samples, 150)

	assert.InDelta(t, 440, samples[0].Frequency, 1e-9)
	assert.InDelta(t, 440, samples[49].Frequency, 1e-9)
	assert.Zero(t, samples[50].Frequency)
	assert.Zero(t, samples[99].Confidence)
	assert.InDelta(t, 523.25, samples[100].Frequency, 0.01)
	assert.InDelta(t, 1.0, samples[100].Time, 1e-9)
	assert.Equal(t, 1.0, samples[149].Confidence)
}

func TestLoadMIDITrackFilters(t *testing.T) {
	path := writeSong(t)

	all, err := LoadMIDI(path, MIDIOptions{TrackFilter: TrackAll, Rate: 10})
	require.NoError(t, err)
	require.Len(t, all, 15)
	for _, s := range all {
		assert.InDelta(t, 659.26, s.Frequency, 0.01, "highest note wins")
	}

	piano, err := LoadMIDI(path, MIDIOptions{TrackFilter: "2", Rate: 10})
	require.NoError(t, err)
	assert.Len(t, piano, 15)

	byName, err := LoadMIDI(path, MIDIOptions{TrackFilter: "vocal", Rate: 10})
	require.NoError(t, err)
	assert.Len(t, byName, 15)

	_, err = LoadMIDI(path, MIDIOptions{TrackFilter: "strings"})
	assert.ErrorIs(t, err, ErrTrackNotFound)

	_, err = LoadMIDI(path, MIDIOptions{TrackFilter: "7"})
	assert.ErrorIs(t, err, ErrTrackNotFound)

	// Drum notes fall below the vocal range.
	_, err = LoadMIDI(path, MIDIOptions{TrackFilter: "1"})
	assert.ErrorIs(t, err, ErrNoNotes)
}

func TestInspectMIDI(t *testing.T) {
	tracks, err := InspectMIDI(writeSong(t))
	require.NoError(t, err)
	require.Len(t, tracks, 3)

	assert.Equal(t, TrackVocal, tracks[0].Kind)
	assert.Equal(t, "Lead Vocal", tracks[0].Name)
	assert.Equal(t, 2, tracks[0].Notes)
	assert.Equal(t, uint8(69), tracks[0].LowKey)
	assert.Equal(t, uint8(72), tracks[0].HighKey)

	assert.Equal(t, TrackBeat, tracks[1].Kind)
	assert.Equal(t, []uint8{9}, tracks[1].Channels)

	assert.Equal(t, TrackMelodic, tracks[2].Kind)
}

func TestLoadMIDISkipsPercussionOnMelodicTrack(t *testing.T) {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(quarter)

	// E4 on channel 2 with an A5 hit on the drum channel at the same time.
	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName("Guitar"))
	tr.Add(0, midi.NoteOn(1, 64, 90))
	tr.Add(0, midi.NoteOn(9, 81, 120))
	tr.Add(quarter, midi.NoteOff(1, 64))
	tr.Add(0, midi.NoteOff(9, 81))
	tr.Close(0)
	require.NoError(t, s.Add(tr))

	path := filepath.Join(t.TempDir(), "mixed.mid")
	require.NoError(t, s.WriteFile(path))

	samples, err := LoadMIDI(path, MIDIOptions{TrackFilter: "0", Rate: 10})
	require.NoError(t, err)
	require.NotEmpty(t, samples)
	for _, smp := range samples {
		assert.InDelta(t, 329.63, smp.Frequency, 0.01)
	}

	tracks, err := InspectMIDI(path)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, TrackMelodic, tracks[0].Kind)
	assert.Equal(t, 1, tracks[0].Notes)
	assert.Equal(t, []uint8{1, 9}, tracks[0].Channels)
}

type stubExtractor struct {
	calls int
}

func (s *stubExtractor) Method() Method { return YIN }

func (s *stubExtractor) Extract(context.Context, string) ([]scoring.Sample, error) {
	s.calls++
	return []scoring.Sample{{Time: 0, Frequency: 220, Confidence: 1}}, nil
}

func TestLoadReferenceDispatch(t *testing.T) {
	stub := &stubExtractor{}

	samples, err := LoadReference(context.Background(), writeSong(t), stub, MIDIOptions{})
	require.NoError(t, err)
	assert.Len(t, samples, 150)
	assert.Zero(t, stub.calls)

	samples, err = LoadReference(context.Background(), "reference.wav", stub, MIDIOptions{})
	require.NoError(t, err)
	assert.Len(t, samples, 1)
	assert.Equal(t, 1, stub.calls)
}
