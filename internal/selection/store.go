package selection

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/glefebvre/housou/internal/errors"
	"github.com/glefebvre/housou/internal/logger"
	"github.com/glefebvre/housou/internal/models"
)

// StorageKey is the fixed key the selection blob is stored under
const StorageKey = "housou.selections"

// refreshAfter is how old a stored blob may get before reading it bumps updated_at
const refreshAfter = 24 * time.Hour

// Store persists one selection blob. The blob is read from the database once
// and served from memory afterwards.
type Store struct {
	db  *gorm.DB
	key string
	log *logger.Logger

	mu        sync.Mutex
	loaded    bool
	found     bool
	cached    models.Selections
	updatedAt time.Time
}

// NewStore returns a store for the given client namespace. An empty namespace
// uses the bare StorageKey, which is what the terminal commands share.
func NewStore(db *gorm.DB, namespace string) *Store {
	key := StorageKey
	if namespace != "" {
		key = StorageKey + ":" + namespace
	}
	return &Store{db: db, key: key, log: logger.AppLogger()}
}

// Key returns the storage key of this store
func (s *Store) Key() string {
	return s.key
}

// Load returns the stored selections and whether a usable blob was found.
// A missing or malformed blob is not an error.
func (s *Store) Load(ctx context.Context) (models.Selections, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return s.cached, s.found, nil
	}

	var record models.SelectionRecord
	err := s.db.WithContext(ctx).Where(&models.SelectionRecord{Key: s.key}).First(&record).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		s.remember(models.Selections{}, false)
		return s.cached, false, nil
	case err != nil:
		return models.Selections{}, false, apperrors.DatabaseError("failed to load selections", err).
			WithContext("key", s.key)
	}

	var sel models.Selections
	if err := json.Unmarshal([]byte(record.Value), &sel); err != nil {
		s.log.WithFields(map[string]interface{}{"key": s.key}).
			WarnContext(ctx, "Ignoring malformed stored selections")
		s.remember(models.Selections{}, false)
		return s.cached, false, nil
	}

	s.remember(sel, true)
	s.updatedAt = record.UpdatedAt
	return sel, true, nil
}

// Save writes the selections and refreshes the in-memory copy
func (s *Store) Save(ctx context.Context, sel models.Selections) error {
	blob, err := json.Marshal(sel)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to encode selections")
	}

	now := time.Now()
	record := models.SelectionRecord{
		Key:       s.key,
		Value:     string(blob),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return apperrors.DatabaseError("failed to save selections", err).WithContext("key", s.key)
	}

	s.remember(sel, true)
	s.updatedAt = now
	return nil
}

// refresh bumps updated_at of a blob that is still read so PurgeStale keeps it
func (s *Store) refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if !s.found || now.Sub(s.updatedAt) < refreshAfter {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&models.SelectionRecord{}).
		Where(&models.SelectionRecord{Key: s.key}).
		Update("updated_at", now).Error
	if err != nil {
		return apperrors.DatabaseError("failed to refresh selections", err).WithContext("key", s.key)
	}
	s.updatedAt = now
	return nil
}

// Reset deletes the stored blob
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.WithContext(ctx).Where(&models.SelectionRecord{Key: s.key}).Delete(&models.SelectionRecord{}).Error
	if err != nil {
		return apperrors.DatabaseError("failed to reset selections", err).WithContext("key", s.key)
	}

	s.remember(models.Selections{}, false)
	return nil
}

func (s *Store) remember(sel models.Selections, found bool) {
	s.loaded = true
	s.found = found
	s.cached = sel
}

// LoadResolved loads the stored blob and resolves it against cfg. A stored blob
// is written back when resolution changed it. Without a stored blob the defaults
// are returned and nothing is written until the first explicit change.
func (s *Store) LoadResolved(ctx context.Context, cfg *models.Config, now time.Time) (models.Selections, error) {
	stored, found, err := s.Load(ctx)
	if err != nil {
		return models.Selections{}, err
	}
	if !found {
		return Resolve(Defaults, cfg, now), nil
	}

	resolved := Resolve(stored, cfg, now)
	if resolved != stored {
		if err := s.Save(ctx, resolved); err != nil {
			return resolved, err
		}
		return resolved, nil
	}
	if err := s.refresh(ctx); err != nil {
		s.log.WithFields(map[string]interface{}{"key": s.key}).
			WarnContext(ctx, "Failed to refresh stored selections")
	}
	return resolved, nil
}

// PurgeStale deletes the per-client blobs not written since cutoff and returns
// how many were removed. The shared terminal blob is never purged.
func PurgeStale(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("? LIKE ? AND ? < ?", clause.Column{Name: "key"}, StorageKey+":%", clause.Column{Name: "updated_at"}, cutoff).
		Delete(&models.SelectionRecord{})
	if res.Error != nil {
		return 0, apperrors.DatabaseError("failed to purge stale selections", res.Error)
	}
	return res.RowsAffected, nil
}

// Update applies change against cfg and persists the result
func (s *Store) Update(ctx context.Context, current models.Selections, change Change, cfg *models.Config) (models.Selections, error) {
	next, err := Apply(current, change, cfg)
	if err != nil {
		return current, err
	}
	if next == current {
		return current, nil
	}
	if err := s.Save(ctx, next); err != nil {
		return current, err
	}
	return next, nil
}
