package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fenggwsx/roomchat/internal/config"
	"github.com/fenggwsx/roomchat/internal/storage"
)

const defaultListLimit = 50

// Store is a GORM-backed SQLite implementation of storage.Store.
type Store struct {
	db *gorm.DB
}

var _ storage.Store = (*Store)(nil)

type sessionModel struct {
	ID         string `gorm:"primaryKey"`
	Name       string `gorm:"index"`
	Room       string `gorm:"index"`
	RemoteAddr string
	JoinedAt   time.Time `gorm:"index"`
	LeftAt     *time.Time
	Reason     string
}

func (sessionModel) TableName() string {
	return "sessions"
}

// NewStore opens a SQLite database at the provided path.
func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; serialize instead of failing with SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate applies schema updates.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&sessionModel{})
}

// RecordJoin stores a new session record.
func (s *Store) RecordJoin(ctx context.Context, rec *storage.SessionRecord) error {
	if rec == nil {
		return errors.New("nil session record")
	}
	model := sessionModel{
		ID:         rec.ID,
		Name:       rec.Name,
		Room:       rec.Room,
		RemoteAddr: rec.RemoteAddr,
		JoinedAt:   rec.JoinedAt,
		LeftAt:     rec.LeftAt,
		Reason:     rec.Reason,
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// RecordLeave completes the record of a finished session.
func (s *Store) RecordLeave(ctx context.Context, id string, leftAt time.Time, reason string) error {
	res := s.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"left_at": leftAt, "reason": reason})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetSession retrieves a session record by id.
func (s *Store) GetSession(ctx context.Context, id string) (*storage.SessionRecord, error) {
	var model sessionModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	rec := toRecord(model)
	return &rec, nil
}

// ListSessions returns the most recent sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]storage.SessionRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var models []sessionModel
	if err := s.db.WithContext(ctx).Order("joined_at desc").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]storage.SessionRecord, 0, len(models))
	for _, model := range models {
		records = append(records, toRecord(model))
	}
	return records, nil
}

func toRecord(model sessionModel) storage.SessionRecord {
	return storage.SessionRecord{
		ID:         model.ID,
		Name:       model.Name,
		Room:       model.Room,
		RemoteAddr: model.RemoteAddr,
		JoinedAt:   model.JoinedAt,
		LeftAt:     model.LeftAt,
		Reason:     model.Reason,
	}
}
