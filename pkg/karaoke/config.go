package karaoke

import (
	"github.com/himanishpuri/KaraokeScore/internal/observe"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/audio"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/extract"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/scoring"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/storage"
)

type Config struct {
	DBPath     string
	TempDir    string
	SampleRate int
	FFmpegPath string
	Logger     Logger
	Storage    Storage
	Metrics    *observe.Metrics

	// Runtime is a caller-owned extraction runtime. When nil and a model method is
	// requested, the service creates one from RuntimeConfig and closes it itself.
	Runtime       *extract.Runtime
	RuntimeConfig extract.RuntimeConfig

	// DefaultMethod is used when a request names no method.
	DefaultMethod extract.Method

	// Extractors replace the built-in extractor for their method.
	Extractors map[extract.Method]extract.Extractor

	Scoring scoring.Options
	MIDI    extract.MIDIOptions
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

func WithFFmpegPath(path string) Option {
	return func(c *Config) {
		c.FFmpegPath = path
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func WithMetrics(m *observe.Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithRuntime shares rt with the service. The caller keeps ownership and closes it.
func WithRuntime(rt *extract.Runtime) Option {
	return func(c *Config) {
		c.Runtime = rt
	}
}

func WithRuntimeConfig(rc extract.RuntimeConfig) Option {
	return func(c *Config) {
		c.RuntimeConfig = rc
	}
}

func WithExtractor(ex extract.Extractor) Option {
	return func(c *Config) {
		if c.Extractors == nil {
			c.Extractors = make(map[extract.Method]extract.Extractor)
		}
		c.Extractors[ex.Method()] = ex
	}
}

func WithDefaultMethod(m extract.Method) Option {
	return func(c *Config) {
		c.DefaultMethod = m
	}
}

func WithScoringOptions(opts scoring.Options) Option {
	return func(c *Config) {
		c.Scoring = opts
	}
}

func WithMIDIOptions(opts extract.MIDIOptions) Option {
	return func(c *Config) {
		c.MIDI = opts
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:        storage.DefaultDBFile,
		TempDir:       "/tmp/karaoke",
		SampleRate:    audio.DefaultSampleRate,
		FFmpegPath:    "ffmpeg",
		DefaultMethod: extract.DefaultMethod,
		MIDI:          extract.MIDIOptions{TrackFilter: extract.TrackAuto, Rate: extract.DefaultMIDIRate},
	}
}
