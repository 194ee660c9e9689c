package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/KaraokeScore/pkg/utils"
)

// DefaultSampleRate is the analysis rate used for native pitch detection.
const DefaultSampleRate = 16000

const defaultConvertTimeout = 2 * time.Minute

type ConvertWAVConfig struct {
	SampleRate int
	FFmpegPath string
}

// ConvertToMonoWAV transcodes inputPath into a 16-bit mono WAV under outputDir and
// returns its path. The caller removes the file.
func ConvertToMonoWAV(
	ctx context.Context,
	inputPath string,
	outputDir string,
	cfg ConvertWAVConfig,
) (string, error) {

	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultConvertTimeout)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return "", err
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	tmp, err := os.CreateTemp(outputDir, base+"_*.tmp.wav")
	if err != nil {
		return "", fmt.Errorf("creating temp wav: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(
		ctx,
		cfg.FFmpegPath,
		"-y",
		"-v", "quiet",
		"-i", inputPath,
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", cfg.SampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		tmpPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %v (%s)", err, out)
	}

	outputPath := strings.TrimSuffix(tmpPath, ".tmp.wav") + ".wav"
	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		return "", err
	}

	return outputPath, nil
}

// LoadMono returns the mono PCM of any supported audio file, converting through
// ffmpeg unless it is already a WAV at the requested rate.
func LoadMono(ctx context.Context, path, tempDir string, cfg ConvertWAVConfig) (*PCM, error) {
	if IsWAV(path) {
		pcm, err := ReadWav(path)
		if err == nil && (cfg.SampleRate == 0 || pcm.SampleRate == cfg.SampleRate) {
			return pcm, nil
		}
	}

	wavPath, err := ConvertToMonoWAV(ctx, path, tempDir, cfg)
	if err != nil {
		return nil, fmt.Errorf("audio conversion failed: %w", err)
	}
	defer os.Remove(wavPath)

	return ReadWav(wavPath)
}
