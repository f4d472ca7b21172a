package app

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sitesmith/backend/internal/shared/errs"
)

// Store persists applications.
type Store struct {
	db *gorm.DB
}

// NewStore creates an application store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new application and returns it with its id assigned.
func (s *Store) Create(a *Application) error {
	if err := s.db.Create(a).Error; err != nil {
		return errs.Persistence("create application", err)
	}
	return nil
}

// ByID fetches an application.
func (s *Store) ByID(id uint64) (*Application, error) {
	var a Application
	if err := s.db.First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Newf(errs.KindNotFound, "application %d not found", id)
		}
		return nil, errs.Persistence("load application", err)
	}
	return &a, nil
}

// UpdateDeploy records a successful deploy on the application row.
func (s *Store) UpdateDeploy(id uint64, deployKey string, deployedAt time.Time) error {
	res := s.db.Model(&Application{}).Where("id = ?", id).Updates(map[string]any{
		"deploy_key":  deployKey,
		"deployed_at": deployedAt,
	})
	if res.Error != nil {
		return errs.Persistence("update deploy info", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Newf(errs.KindNotFound, "application %d not found", id)
	}
	return nil
}

// UpdateCover sets the cover image reference. Called from the fire-and-forget
// screenshot task, so callers treat failures as log-only.
func (s *Store) UpdateCover(id uint64, cover string) error {
	res := s.db.Model(&Application{}).Where("id = ?", id).Update("cover", cover)
	if res.Error != nil {
		return errs.Persistence("update cover", res.Error)
	}
	return nil
}

// DeployKeyExists reports whether any application already holds the key.
func (s *Store) DeployKeyExists(key string) (bool, error) {
	var count int64
	if err := s.db.Model(&Application{}).Where("deploy_key = ?", key).Count(&count).Error; err != nil {
		return false, errs.Persistence("count deploy key", err)
	}
	return count > 0, nil
}

// Delete removes an application row.
func (s *Store) Delete(id uint64) error {
	if err := s.db.Delete(&Application{}, id).Error; err != nil {
		return errs.Persistence("delete application", err)
	}
	return nil
}
