package repository

import (
	"context"
	"errors"
	"time"

	"coin-service/internal/model"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EntryRepository struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewEntryRepository(db *gorm.DB, log *logrus.Logger) *EntryRepository {
	return &EntryRepository{
		db:  db,
		log: log,
	}
}

// GetEntry returns the entry stored under key, or nil if there is none.
func (r *EntryRepository) GetEntry(ctx context.Context, key string) (*model.Entry, error) {
	var entry model.Entry
	err := r.db.WithContext(ctx).
		Where("entry_key = ?", key).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// SaveEntry inserts or overwrites an entry, bumping its version so pollers
// in other processes can tell the row changed even when the value did not.
func (r *EntryRepository) SaveEntry(ctx context.Context, key, value, origin string) error {
	entry := model.Entry{
		Key:       key,
		Value:     value,
		Origin:    origin,
		Version:   1,
		UpdatedAt: time.Now(),
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"origin":     origin,
			"version":    gorm.Expr("coin_entries.version + 1"),
			"updated_at": entry.UpdatedAt,
		}),
	}).Create(&entry).Error
}

// GetEntriesByKeys retrieves the entries present for the given keys.
func (r *EntryRepository) GetEntriesByKeys(ctx context.Context, keys []string) ([]model.Entry, error) {
	var entries []model.Entry
	if len(keys) == 0 {
		return entries, nil
	}

	err := r.db.WithContext(ctx).
		Where("entry_key IN ?", keys).
		Find(&entries).Error

	return entries, err
}

// CountEntries returns total count of entries
func (r *EntryRepository) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Entry{}).Count(&count).Error
	return count, err
}
