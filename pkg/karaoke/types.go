package karaoke

import (
	"errors"
	"strings"
	"time"

	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/audio"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/extract"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/scoring"
)

// ScoreRequest names the two inputs of a scoring run.
type ScoreRequest struct {
	UserPath      string
	ReferencePath string
	Method        string   // crepe when empty
	Tolerance     *float64 // nil uses the difficulty default
	Difficulty    string   // easy when empty
	TrackFilter   string   // MIDI reference track selection; configured default when empty
	Advice        bool
}

// ContourRequest scores contours that were extracted elsewhere.
type ContourRequest struct {
	User       []scoring.Sample `json:"user"`
	Reference  []scoring.Sample `json:"reference"`
	Tolerance  *float64         `json:"tolerance,omitempty"`
	Difficulty string           `json:"difficulty,omitempty"`
}

// Report is the full outcome of Analyze.
type Report struct {
	SessionID string            `json:"session_id,omitempty"`
	Method    extract.Method    `json:"method,omitempty"`
	Policy    *scoring.Policy   `json:"policy,omitempty"`
	Result    scoring.Result    `json:"result"`
	Feedback  *scoring.Feedback `json:"feedback,omitempty"`

	Evaluation *scoring.Evaluation `json:"-"`
}

// Session is a stored scoring run.
type Session struct {
	ID             string    `json:"id"`
	UserFile       string    `json:"user_file"`
	ReferenceFile  string    `json:"reference_file"`
	Method         string    `json:"method"`
	Difficulty     string    `json:"difficulty"`
	ToleranceCents float64   `json:"tolerance_cents"`
	FinalScore     float64   `json:"final_score"`
	Accuracy       float64   `json:"accuracy"`
	DTWScore       float64   `json:"dtw_score"`
	DTWDistance    float64   `json:"dtw_distance"`
	MAECents       float64   `json:"mae_cents"`
	Duration       float64   `json:"duration"`
	Stage          string    `json:"stage,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Result rebuilds the tagged result the session recorded.
func (s *Session) Result() scoring.Result {
	if s.Error != "" {
		detail := strings.TrimPrefix(s.Error, s.Stage+": ")
		return scoring.Fail(scoring.WithStage(scoring.Stage(s.Stage), errors.New(detail)))
	}
	return scoring.Success(scoring.Metrics{
		FinalScore:  s.FinalScore,
		Accuracy:    s.Accuracy,
		DTWScore:    s.DTWScore,
		DTWDistance: s.DTWDistance,
		MAECents:    s.MAECents,
		Duration:    s.Duration,
	})
}

// Inspection describes an input file.
type Inspection struct {
	Path   string              `json:"path"`
	Kind   string              `json:"kind"` // "audio" or "midi"
	Audio  *audio.Metadata     `json:"audio,omitempty"`
	Tracks []extract.TrackInfo `json:"tracks,omitempty"`
}
