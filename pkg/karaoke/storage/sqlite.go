//go:build !js && !wasm
// +build !js,!wasm

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/KaraokeScore/pkg/utils"
)

const (
	DefaultDBFile  = "karaoke.sqlite3"
	EnvDBPath      = "KARAOKE_DB_PATH"
	errDBClientNil = "db client is nil"

	defaultListLimit = 50
)

// ErrSessionNotFound is returned when no session has the requested ID.
var ErrSessionNotFound = errors.New("session not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// ScoreSession is one recorded scoring run. Failed runs keep Stage and Error and
// leave the metrics zero.
type ScoreSession struct {
	ID             string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserFile       string  `gorm:"index:idx_session_files,priority:1" json:"user_file"`
	ReferenceFile  string  `gorm:"index:idx_session_files,priority:2" json:"reference_file"`
	Method         string  `json:"method"`
	Difficulty     string  `gorm:"index:idx_difficulty" json:"difficulty"`
	ToleranceCents float64 `json:"tolerance_cents"`

	FinalScore  float64 `json:"final_score"`
	Accuracy    float64 `json:"accuracy"`
	DTWScore    float64 `json:"dtw_score"`
	DTWDistance float64 `json:"dtw_distance"`
	MAECents    float64 `json:"mae_cents"`
	Duration    float64 `json:"duration"`

	Stage string `json:"stage,omitempty"`
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_created_at" json:"created_at"`
}

// Succeeded reports whether the run produced metrics.
func (s *ScoreSession) Succeeded() bool { return s.Error == "" }

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv(EnvDBPath)
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := utils.MakeDir(dir); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&ScoreSession{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveSession inserts s, assigning an ID when it has none, and returns the ID.
func (c *DBClient) SaveSession(s *ScoreSession) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}
	if s.ID == "" {
		s.ID = utils.GenerateUUID()
	}
	if err := c.DB.Create(s).Error; err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return s.ID, nil
}

func (c *DBClient) GetSession(id string) (*ScoreSession, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var s ScoreSession
	err := c.DB.Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &s, nil
}

// ListSessions returns sessions newest first. A non-positive limit uses the default page size.
func (c *DBClient) ListSessions(limit, offset int) ([]ScoreSession, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	var rows []ScoreSession
	err := c.DB.Order("created_at desc").Order("id").Limit(limit).Offset(max(offset, 0)).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return rows, nil
}

func (c *DBClient) CountSessions() (int64, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var n int64
	if err := c.DB.Model(&ScoreSession{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return n, nil
}

func (c *DBClient) DeleteSession(id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	res := c.DB.Where("id = ?", id).Delete(&ScoreSession{})
	if res.Error != nil {
		return fmt.Errorf("deleting session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}
