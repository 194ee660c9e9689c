package karaoke

import (
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/storage"
)

// ErrSessionNotFound is returned by the SQLite store for unknown session IDs.
var ErrSessionNotFound = storage.ErrSessionNotFound

// storageAdapter adapts storage.DBClient to the Storage interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage opens the session store at dbPath.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) SaveSession(sess *Session) (string, error) {
	row := toRow(sess)
	id, err := s.db.SaveSession(row)
	if err != nil {
		return "", err
	}
	sess.ID = id
	sess.CreatedAt = row.CreatedAt
	return id, nil
}

func (s *storageAdapter) GetSession(id string) (*Session, error) {
	row, err := s.db.GetSession(id)
	if err != nil {
		return nil, err
	}
	sess := fromRow(row)
	return &sess, nil
}

func (s *storageAdapter) ListSessions(limit, offset int) ([]Session, error) {
	rows, err := s.db.ListSessions(limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]Session, len(rows))
	for i := range rows {
		out[i] = fromRow(&rows[i])
	}
	return out, nil
}

func (s *storageAdapter) DeleteSession(id string) error {
	return s.db.DeleteSession(id)
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}

func toRow(s *Session) *storage.ScoreSession {
	return &storage.ScoreSession{
		ID:             s.ID,
		UserFile:       s.UserFile,
		ReferenceFile:  s.ReferenceFile,
		Method:         s.Method,
		Difficulty:     s.Difficulty,
		ToleranceCents: s.ToleranceCents,
		FinalScore:     s.FinalScore,
		Accuracy:       s.Accuracy,
		DTWScore:       s.DTWScore,
		DTWDistance:    s.DTWDistance,
		MAECents:       s.MAECents,
		Duration:       s.Duration,
		Stage:          s.Stage,
		Error:          s.Error,
		CreatedAt:      s.CreatedAt,
	}
}

func fromRow(r *storage.ScoreSession) Session {
	return Session{
		ID:             r.ID,
		UserFile:       r.UserFile,
		ReferenceFile:  r.ReferenceFile,
		Method:         r.Method,
		Difficulty:     r.Difficulty,
		ToleranceCents: r.ToleranceCents,
		FinalScore:     r.FinalScore,
		Accuracy:       r.Accuracy,
		DTWScore:       r.DTWScore,
		DTWDistance:    r.DTWDistance,
		MAECents:       r.MAECents,
		Duration:       r.Duration,
		Stage:          r.Stage,
		Error:          r.Error,
		CreatedAt:      r.CreatedAt,
	}
}
