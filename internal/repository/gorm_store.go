package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// recordRow is the single table every kind is stored in
type recordRow struct {
	Kind      string    `gorm:"primaryKey;size:32"`
	ID        string    `gorm:"primaryKey;size:64"`
	Version   int64     `gorm:"not null"`
	Data      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for recordRow
func (recordRow) TableName() string {
	return "records"
}

// GormStore persists records through gorm (postgres or sqlite)
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a store over db
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// AutoMigrate creates the records table
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&recordRow{})
}

func (s *GormStore) Get(ctx context.Context, kind Kind, id string) (*Record, error) {
	var row recordRow
	err := s.db.WithContext(ctx).
		Where("kind = ? AND id = ?", string(kind), id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toRecord(), nil
}

func (s *GormStore) List(ctx context.Context, kind Kind) ([]*Record, error) {
	var rows []recordRow
	err := s.db.WithContext(ctx).
		Where("kind = ?", string(kind)).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*Record, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toRecord())
	}
	return out, nil
}

func (s *GormStore) Put(ctx context.Context, rec *Record) error {
	ts := s.now().UTC()
	if rec.Version == 0 {
		row := recordRow{
			Kind:      string(rec.Kind),
			ID:        rec.ID,
			Version:   1,
			Data:      string(rec.Data),
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			if isDuplicateKeyError(err) {
				return ErrVersionConflict
			}
			return err
		}
		rec.Version = 1
		rec.CreatedAt = ts
		rec.UpdatedAt = ts
		return nil
	}

	result := s.db.WithContext(ctx).
		Model(&recordRow{}).
		Where("kind = ? AND id = ? AND version = ?", string(rec.Kind), rec.ID, rec.Version).
		Updates(map[string]any{
			"data":       string(rec.Data),
			"version":    rec.Version + 1,
			"updated_at": ts,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Either the row is gone or someone else bumped the version.
		if _, err := s.Get(ctx, rec.Kind, rec.ID); err != nil {
			return err
		}
		return ErrVersionConflict
	}

	rec.Version++
	rec.UpdatedAt = ts
	return nil
}

func (s *GormStore) Delete(ctx context.Context, kind Kind, id string) error {
	result := s.db.WithContext(ctx).
		Where("kind = ? AND id = ?", string(kind), id).
		Delete(&recordRow{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *recordRow) toRecord() *Record {
	return &Record{
		Kind:      Kind(r.Kind),
		ID:        r.ID,
		Version:   r.Version,
		Data:      []byte(r.Data),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
