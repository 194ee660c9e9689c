package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/extract"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/scoring"
)

// Environment overrides applied by ApplyEnv.
const (
	EnvDBPath  = "KARAOKE_DB_PATH"
	EnvTempDir = "KARAOKE_TEMP_DIR"
	EnvPython  = "KARAOKE_PYTHON"
)

var validCapacities = []string{"tiny", "small", "medium", "large", "full"}

// Load reads the YAML file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over Default and validates the result.
// Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv(EnvTempDir); v != "" {
		cfg.Audio.TempDir = v
	}
	if v := os.Getenv(EnvPython); v != "" {
		cfg.Extraction.Python = v
	}
}

// Validate returns every problem found, joined.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Storage.DBPath == "" {
		errs = append(errs, errors.New("storage.db_path is required"))
	}

	if cfg.Audio.SampleRate < 8000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is below 8000", cfg.Audio.SampleRate))
	}

	if _, err := extract.ParseMethod(cfg.Extraction.Method); err != nil {
		errs = append(errs, fmt.Errorf("extraction.method: %w", err))
	}
	if cfg.Extraction.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("extraction.concurrency must be at least 1, got %d", cfg.Extraction.Concurrency))
	}
	if cfg.Extraction.Timeout < 0 {
		errs = append(errs, fmt.Errorf("extraction.timeout must not be negative"))
	}
	if !contains(validCapacities, cfg.Extraction.CrepeCapacity) {
		errs = append(errs, fmt.Errorf("extraction.crepe_capacity %q is invalid; valid values: %s",
			cfg.Extraction.CrepeCapacity, strings.Join(validCapacities, ", ")))
	}

	if _, err := scoring.ParseDifficulty(cfg.Scoring.Difficulty); err != nil {
		errs = append(errs, fmt.Errorf("scoring.difficulty: %w", err))
	}
	if tol := cfg.Scoring.ToleranceCents; tol != nil && *tol < 0 {
		errs = append(errs, fmt.Errorf("scoring.tolerance_cents must not be negative, got %v", *tol))
	}
	if cfg.Scoring.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("scoring.frame_rate must be positive"))
	}
	if cfg.Scoring.MinConfidence < 0 || cfg.Scoring.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("scoring.min_confidence %v is outside [0, 1]", cfg.Scoring.MinConfidence))
	}
	if cfg.Scoring.BandRadius < 0 {
		errs = append(errs, fmt.Errorf("scoring.band_radius must not be negative"))
	}
	if cfg.Scoring.BandFraction < 0 || cfg.Scoring.BandFraction > 1 {
		errs = append(errs, fmt.Errorf("scoring.band_fraction %v is outside [0, 1]", cfg.Scoring.BandFraction))
	}

	if cfg.MIDI.Rate < 0 {
		errs = append(errs, fmt.Errorf("midi.rate must not be negative"))
	}

	if cfg.Server.MaxUploadMB < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb must not be negative"))
	}

	return errors.Join(errs...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
