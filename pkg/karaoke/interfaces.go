package karaoke

import (
	"context"

	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/scoring"
)

type Service interface {
	// Score runs extraction and scoring for two files. It never panics and always
	// returns either metrics or a stage-tagged failure.
	Score(ctx context.Context, req ScoreRequest) scoring.Result
	// Analyze is Score with the session ID, resolved policy and optional feedback.
	Analyze(ctx context.Context, req ScoreRequest) *Report
	ScoreContours(ctx context.Context, req ContourRequest) scoring.Result
	Inspect(ctx context.Context, path string) (*Inspection, error)
	GetSession(id string) (*Session, error)
	ListSessions(limit, offset int) ([]Session, error)
	DeleteSession(id string) error
	Close() error
}

type Storage interface {
	SaveSession(s *Session) (string, error)
	GetSession(id string) (*Session, error)
	ListSessions(limit, offset int) ([]Session, error)
	DeleteSession(id string) error
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
