package deploy

import (
	"gorm.io/gorm"

	"github.com/sitesmith/backend/internal/shared/errs"
)

// Store persists deployment records.
type Store struct {
	db *gorm.DB
}

// NewStore creates a deployment record store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Insert appends a deployment record.
func (s *Store) Insert(r *Record) error {
	if err := s.db.Create(r).Error; err != nil {
		return errs.Persistence("insert deployment record", err)
	}
	return nil
}

// KeyExists reports whether any record claims the key.
func (s *Store) KeyExists(key string) (bool, error) {
	var n int64
	if err := s.db.Model(&Record{}).Where("deploy_key = ?", key).Count(&n).Error; err != nil {
		return false, errs.Persistence("check deploy key", err)
	}
	return n > 0, nil
}

// Latest returns the newest record of an application, or nil when it was
// never deployed.
func (s *Store) Latest(appID uint64) (*Record, error) {
	var out []Record
	err := s.db.
		Where("app_id = ?", appID).
		Order("created_at desc, id desc").
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, errs.Persistence("load latest deployment", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// History lists an application's deployments, newest first.
func (s *Store) History(appID uint64, limit int) ([]Record, error) {
	var out []Record
	err := s.db.
		Where("app_id = ?", appID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, errs.Persistence("list deployments", err)
	}
	return out, nil
}
