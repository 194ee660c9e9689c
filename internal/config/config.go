// Package config loads the YAML configuration shared by the command-line tool and the
// HTTP server.
package config

import (
	"time"

	"github.com/himanishpuri/KaraokeScore/pkg/karaoke"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/extract"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/scoring"
)

// LogLevel mirrors the logger's level names.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

type Config struct {
	LogLevel   LogLevel         `yaml:"log_level"`
	Storage    StorageConfig    `yaml:"storage"`
	Audio      AudioConfig      `yaml:"audio"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	MIDI       MIDIConfig       `yaml:"midi"`
	Server     ServerConfig     `yaml:"server"`
}

type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

type AudioConfig struct {
	TempDir    string `yaml:"temp_dir"`
	SampleRate int    `yaml:"sample_rate"`
	FFmpeg     string `yaml:"ffmpeg"`
}

type ExtractionConfig struct {
	Method        string        `yaml:"method"`
	Python        string        `yaml:"python"`
	Concurrency   int64         `yaml:"concurrency"`
	Timeout       time.Duration `yaml:"timeout"`
	CrepeCapacity string        `yaml:"crepe_capacity"`
	StepMillis    int           `yaml:"step_ms"`
}

type ScoringConfig struct {
	Difficulty           string   `yaml:"difficulty"`
	ToleranceCents       *float64 `yaml:"tolerance_cents"`
	UnvoicedPenaltyCents float64  `yaml:"unvoiced_penalty_cents"`
	FrameRate            float64  `yaml:"frame_rate"`
	MinConfidence        float64  `yaml:"min_confidence"`
	MaxGap               float64  `yaml:"max_gap"`
	BandRadius           int      `yaml:"band_radius"`
	BandFraction         float64  `yaml:"band_fraction"`
}

type MIDIConfig struct {
	Track string  `yaml:"track"`
	Rate  float64 `yaml:"rate"`
}

type ServerConfig struct {
	Listen      string `yaml:"listen"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
	CORSOrigin  string `yaml:"cors_origin"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: LogInfo,
		Storage:  StorageConfig{DBPath: "karaoke.sqlite3"},
		Audio: AudioConfig{
			TempDir:    "/tmp/karaoke",
			SampleRate: 16000,
			FFmpeg:     "ffmpeg",
		},
		Extraction: ExtractionConfig{
			Method:        string(extract.DefaultMethod),
			Python:        "python3",
			Concurrency:   1,
			Timeout:       10 * time.Minute,
			CrepeCapacity: "tiny",
			StepMillis:    10,
		},
		Scoring: ScoringConfig{
			Difficulty:           string(scoring.DefaultDifficulty),
			UnvoicedPenaltyCents: scoring.DefaultUnvoicedPenaltyCents,
			FrameRate:            scoring.DefaultFrameRate,
			MinConfidence:        scoring.DefaultMinConfidence,
			MaxGap:               scoring.DefaultMaxGap,
			BandFraction:         scoring.DefaultBandFraction,
		},
		MIDI: MIDIConfig{
			Track: extract.TrackAuto,
			Rate:  extract.DefaultMIDIRate,
		},
		Server: ServerConfig{
			Listen:      ":8080",
			MaxUploadMB: 50,
			CORSOrigin:  "*",
		},
	}
}

// ScoringOptions builds the per-call scoring options from the config.
func (c *Config) ScoringOptions() scoring.Options {
	return scoring.Options{
		Difficulty:           scoring.Difficulty(c.Scoring.Difficulty),
		ToleranceCents:       c.Scoring.ToleranceCents,
		UnvoicedPenaltyCents: c.Scoring.UnvoicedPenaltyCents,
		Normalize: scoring.NormalizeOptions{
			FrameRate:     c.Scoring.FrameRate,
			MinConfidence: c.Scoring.MinConfidence,
			MaxGap:        c.Scoring.MaxGap,
		},
		Align: scoring.AlignOptions{
			Radius:       c.Scoring.BandRadius,
			BandFraction: c.Scoring.BandFraction,
			AutoWiden:    c.Scoring.BandRadius == 0,
		},
	}
}

// RuntimeConfig builds the extraction runtime settings.
func (c *Config) RuntimeConfig() extract.RuntimeConfig {
	return extract.RuntimeConfig{
		Python:        c.Extraction.Python,
		WorkDir:       c.Audio.TempDir,
		Concurrency:   c.Extraction.Concurrency,
		Timeout:       c.Extraction.Timeout,
		CrepeCapacity: c.Extraction.CrepeCapacity,
		StepMillis:    c.Extraction.StepMillis,
	}
}

// MIDIOptions builds the reference MIDI loader options.
func (c *Config) MIDIOptions() extract.MIDIOptions {
	return extract.MIDIOptions{TrackFilter: c.MIDI.Track, Rate: c.MIDI.Rate}
}

// ServiceOptions translates the config into karaoke service options.
func (c *Config) ServiceOptions() []karaoke.Option {
	return []karaoke.Option{
		karaoke.WithDBPath(c.Storage.DBPath),
		karaoke.WithTempDir(c.Audio.TempDir),
		karaoke.WithSampleRate(c.Audio.SampleRate),
		karaoke.WithFFmpegPath(c.Audio.FFmpeg),
		karaoke.WithRuntimeConfig(c.RuntimeConfig()),
		karaoke.WithDefaultMethod(extract.Method(c.Extraction.Method)),
		karaoke.WithScoringOptions(c.ScoringOptions()),
		karaoke.WithMIDIOptions(c.MIDIOptions()),
	}
}
