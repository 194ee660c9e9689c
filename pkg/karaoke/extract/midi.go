package extract

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/scoring"
)

const (
	// DefaultMIDIRate is the rendering rate of reference samples from MIDI notes.
	DefaultMIDIRate = 100.0

	minVocalHz = 80.0
	maxVocalHz = 2000.0

	drumChannel = 9

	// TrackAuto picks vocal tracks by name and falls back to every melodic track.
	TrackAuto = "auto"
	// TrackAll uses every track that is not percussion.
	TrackAll = "all"
)

var (
	ErrNoNotes           = errors.New("no usable notes in MIDI file")
	ErrUnsupportedTiming = errors.New("SMPTE timed MIDI files are not supported")
	ErrTrackNotFound     = errors.New("MIDI track not found")
)

var (
	vocalKeywords = []string{"vocal", "voice", "vox", "sing", "lead", "melody", "lyric"}
	beatKeywords  = []string{"drum", "perc", "beat", "kick", "snare", "hat", "cymbal", "rhythm"}
)

// TrackKind classifies a MIDI track for reference selection.
type TrackKind string

const (
	TrackVocal   TrackKind = "vocal"
	TrackBeat    TrackKind = "beat"
	TrackMelodic TrackKind = "melodic"
	TrackEmpty   TrackKind = "empty"
)

type MIDIOptions struct {
	// TrackFilter is TrackAuto, TrackAll, a track index, or a case-insensitive
	// substring of the track name. Empty means TrackAuto.
	TrackFilter string
	// Rate is the sample rate of the rendered contour. Zero means DefaultMIDIRate.
	Rate float64
}

// TrackInfo describes one track of a MIDI file.
type TrackInfo struct {
	Index    int       `json:"index"`
	Name     string    `json:"name,omitempty"`
	Kind     TrackKind `json:"kind"`
	Notes    int       `json:"notes"`
	LowKey   uint8     `json:"low_key,omitempty"`
	HighKey  uint8     `json:"high_key,omitempty"`
	Channels []uint8   `json:"channels,omitempty"`
}

type midiNote struct {
	start, end float64 // seconds
	key        uint8
	drum       bool
}

type midiTrack struct {
	info  TrackInfo
	notes []midiNote
}

// LoadMIDI renders the selected melody of a MIDI file as a pitch sample sequence.
// Overlapping notes resolve to the highest pitch, and gaps between notes are emitted
// as unvoiced samples.
func LoadMIDI(path string, opts MIDIOptions) ([]scoring.Sample, error) {
	tracks, err := readMIDI(path)
	if err != nil {
		return nil, err
	}

	selected, err := selectTracks(tracks, opts.TrackFilter)
	if err != nil {
		return nil, err
	}

	rate := opts.Rate
	if rate <= 0 {
		rate = DefaultMIDIRate
	}
	samples := renderNotes(selected, rate)
	if len(samples) == 0 {
		return nil, ErrNoNotes
	}
	return samples, nil
}

// InspectMIDI lists the tracks of a MIDI file with their classification.
func InspectMIDI(path string) ([]TrackInfo, error) {
	tracks, err := readMIDI(path)
	if err != nil {
		return nil, err
	}
	infos := make([]TrackInfo, len(tracks))
	for i, t := range tracks {
		infos[i] = t.info
	}
	return infos, nil
}

func readMIDI(path string) ([]midiTrack, error) {
	s, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading MIDI: %w", err)
	}
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, ErrUnsupportedTiming
	}

	tempo := newTempoMap(s.Tracks, ticks)
	tracks := make([]midiTrack, len(s.Tracks))
	for i, tr := range s.Tracks {
		tracks[i] = parseTrack(i, tr, tempo)
	}
	return tracks, nil
}

func parseTrack(index int, tr smf.Track, tempo *tempoMap) midiTrack {
	var (
		name     string
		abs      uint64
		pending  = map[[2]uint8][]int{} // open notes by channel and key
		notes    []midiNote
		channels = map[uint8]bool{}
		drumOnly = true
	)

	for _, ev := range tr {
		abs += uint64(ev.Delta)
		msg := ev.Message

		var text string
		if name == "" && msg.GetMetaTrackName(&text) {
			name = strings.TrimSpace(text)
			continue
		}

		var ch, key, vel uint8
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			k := [2]uint8{ch, key}
			pending[k] = append(pending[k], len(notes))
			notes = append(notes, midiNote{start: tempo.seconds(abs), end: -1, key: key, drum: ch == drumChannel})
			channels[ch] = true
			if ch != drumChannel {
				drumOnly = false
			}
		case msg.GetNoteEnd(&ch, &key):
			k := [2]uint8{ch, key}
			if stack := pending[k]; len(stack) > 0 {
				notes[stack[0]].end = tempo.seconds(abs)
				pending[k] = stack[1:]
			}
		}
	}

	// Notes never released end with the track. Percussion on a track that also
	// carries pitched notes is not melody.
	endOfTrack := tempo.seconds(abs)
	kept := notes[:0]
	for _, n := range notes {
		if n.drum && !drumOnly {
			continue
		}
		if n.end < 0 {
			n.end = endOfTrack
		}
		if n.end > n.start {
			kept = append(kept, n)
		}
	}

	info := TrackInfo{Index: index, Name: name, Notes: len(kept)}
	for ch := range channels {
		info.Channels = append(info.Channels, ch)
	}
	sort.Slice(info.Channels, func(a, b int) bool { return info.Channels[a] < info.Channels[b] })
	for i, n := range kept {
		if i == 0 || n.key < info.LowKey {
			info.LowKey = n.key
		}
		if i == 0 || n.key > info.HighKey {
			info.HighKey = n.key
		}
	}
	info.Kind = classify(name, len(kept), drumOnly)

	return midiTrack{info: info, notes: kept}
}

func classify(name string, notes int, drumOnly bool) TrackKind {
	lower := strings.ToLower(name)
	switch {
	case notes == 0:
		return TrackEmpty
	case drumOnly || containsAny(lower, beatKeywords):
		return TrackBeat
	case containsAny(lower, vocalKeywords):
		return TrackVocal
	}
	return TrackMelodic
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func selectTracks(tracks []midiTrack, filter string) ([]midiTrack, error) {
	filter = strings.TrimSpace(filter)
	var out []midiTrack

	switch strings.ToLower(filter) {
	case "", TrackAuto:
		for _, t := range tracks {
			if t.info.Kind == TrackVocal {
				out = append(out, t)
			}
		}
		if len(out) > 0 {
			return out, nil
		}
		fallthrough
	case TrackAll:
		for _, t := range tracks {
			if t.info.Kind == TrackVocal || t.info.Kind == TrackMelodic {
				out = append(out, t)
			}
		}
		if len(out) == 0 {
			return nil, ErrNoNotes
		}
		return out, nil
	}

	if idx, err := strconv.Atoi(filter); err == nil {
		if idx < 0 || idx >= len(tracks) {
			return nil, fmt.Errorf("%w: index %d of %d", ErrTrackNotFound, idx, len(tracks))
		}
		return []midiTrack{tracks[idx]}, nil
	}

	needle := strings.ToLower(filter)
	for _, t := range tracks {
		if strings.Contains(strings.ToLower(t.info.Name), needle) {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrTrackNotFound, filter)
	}
	return out, nil
}

func keyToHz(key uint8) float64 {
	return 440 * math.Pow(2, (float64(key)-69)/12)
}

func renderNotes(tracks []midiTrack, rate float64) []scoring.Sample {
	var grid []float64 // highest active frequency per slot
	for _, t := range tracks {
		for _, n := range t.notes {
			hz := keyToHz(n.key)
			if hz < minVocalHz || hz > maxVocalHz {
				continue
			}
			from := int(math.Ceil(n.start * rate))
			to := int(math.Ceil(n.end*rate)) - 1
			if to >= len(grid) {
				grid = append(grid, make([]float64, to+1-len(grid))...)
			}
			for k := from; k <= to; k++ {
				grid[k] = math.Max(grid[k], hz)
			}
		}
	}

	first := -1
	for k, hz := range grid {
		if hz > 0 {
			first = k
			break
		}
	}
	if first < 0 {
		return nil
	}

	samples := make([]scoring.Sample, 0, len(grid)-first)
	for k := first; k < len(grid); k++ {
		s := scoring.Sample{Time: float64(k) / rate, Frequency: grid[k]}
		if grid[k] > 0 {
			s.Confidence = 1
		}
		samples = append(samples, s)
	}
	return samples
}

// tempoMap converts absolute ticks to seconds across tempo changes.
type tempoMap struct {
	ticks   smf.MetricTicks
	changes []tempoChange
}

type tempoChange struct {
	tick    uint64
	bpm     float64
	seconds float64 // elapsed time at tick
}

func newTempoMap(tracks []smf.Track, ticks smf.MetricTicks) *tempoMap {
	var raw []tempoChange
	for _, tr := range tracks {
		var abs uint64
		for _, ev := range tr {
			abs += uint64(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) && bpm > 0 {
				raw = append(raw, tempoChange{tick: abs, bpm: bpm})
			}
		}
	}
	sort.SliceStable(raw, func(a, b int) bool { return raw[a].tick < raw[b].tick })

	m := &tempoMap{ticks: ticks}
	m.changes = append(m.changes, tempoChange{tick: 0, bpm: 120})
	for _, c := range raw {
		last := &m.changes[len(m.changes)-1]
		if c.tick == last.tick {
			last.bpm = c.bpm
			continue
		}
		c.seconds = last.seconds + m.span(c.tick-last.tick, last.bpm)
		m.changes = append(m.changes, c)
	}
	return m
}

func (m *tempoMap) span(ticks uint64, bpm float64) float64 {
	return float64(ticks) / float64(m.ticks.Ticks4th()) * 60 / bpm
}

func (m *tempoMap) seconds(tick uint64) float64 {
	i := sort.Search(len(m.changes), func(i int) bool { return m.changes[i].tick > tick }) - 1
	c := m.changes[i]
	return c.seconds + m.span(tick-c.tick, c.bpm)
}
