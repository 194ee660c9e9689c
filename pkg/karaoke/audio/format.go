package audio

import (
	"errors"
	"fmt"

	"github.com/himanishpuri/KaraokeScore/pkg/utils"
)

// ErrUnsupportedFormat is returned for files whose extension is not a known audio or MIDI type.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var audioExts = map[string]bool{
	".wav": true, ".mp3": true, ".flac": true, ".ogg": true, ".opus": true,
	".m4a": true, ".aac": true, ".webm": true, ".aiff": true, ".aif": true,
}

var midiExts = map[string]bool{".mid": true, ".midi": true}

// IsAudio reports whether path has a supported audio extension.
func IsAudio(path string) bool { return audioExts[utils.Ext(path)] }

// IsMIDI reports whether path has a MIDI extension.
func IsMIDI(path string) bool { return midiExts[utils.Ext(path)] }

// IsWAV reports whether path can be decoded without conversion.
func IsWAV(path string) bool { return utils.Ext(path) == ".wav" }

// ValidateInput checks that path is readable and of a supported type.
// MIDI files are accepted only when allowMIDI is set.
func ValidateInput(path string, allowMIDI bool) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := utils.CheckReadable(path); err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	if IsAudio(path) || (allowMIDI && IsMIDI(path)) {
		return nil
	}
	return fmt.Errorf("%s: %w (%q)", path, ErrUnsupportedFormat, utils.Ext(path))
}
