package chat

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sitesmith/backend/internal/shared/errs"
)

// Store persists chat messages.
type Store struct {
	db *gorm.DB
}

// NewStore creates a chat message store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Insert appends a message and returns it with its id assigned.
func (s *Store) Insert(m *Message) error {
	if err := s.db.Create(m).Error; err != nil {
		return errs.Persistence("insert chat message", err)
	}
	return nil
}

// ByID fetches a message.
func (s *Store) ByID(id uint64) (*Message, error) {
	var m Message
	if err := s.db.First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Newf(errs.KindNotFound, "message %d not found", id)
		}
		return nil, errs.Persistence("load chat message", err)
	}
	return &m, nil
}

// AIChildren returns the ai replies of a user message in creation order.
func (s *Store) AIChildren(parentID uint64) ([]Message, error) {
	var out []Message
	err := s.db.
		Where("parent_id = ? AND role = ?", parentID, RoleAI).
		Order("created_at asc, id asc").
		Find(&out).Error
	if err != nil {
		return nil, errs.Persistence("list ai children", err)
	}
	return out, nil
}

// DeleteAIChildren removes every ai reply of a user message.
func (s *Store) DeleteAIChildren(parentID uint64) error {
	err := s.db.
		Where("parent_id = ? AND role = ?", parentID, RoleAI).
		Delete(&Message{}).Error
	if err != nil {
		return errs.Persistence("delete ai children", err)
	}
	return nil
}

// DeleteByApp removes all messages of an application.
func (s *Store) DeleteByApp(appID uint64) error {
	if err := s.db.Where("app_id = ?", appID).Delete(&Message{}).Error; err != nil {
		return errs.Persistence("delete app messages", err)
	}
	return nil
}

// Recent returns the most recent max messages of an application in ascending
// chronological order, used to seed a generation handle's context window.
func (s *Store) Recent(appID uint64, max int) ([]Message, error) {
	var out []Message
	err := s.db.
		Where("app_id = ?", appID).
		Order("created_at desc, id desc").
		Limit(max).
		Find(&out).Error
	if err != nil {
		return nil, errs.Persistence("load recent messages", err)
	}
	// Newest-first from the query; callers want oldest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Page returns up to size messages created strictly before the cursor,
// newest first. A zero cursor means "from the latest".
func (s *Store) Page(appID uint64, before time.Time, size int) ([]Message, error) {
	q := s.db.Where("app_id = ?", appID)
	if !before.IsZero() {
		q = q.Where("created_at < ?", before)
	}
	var out []Message
	err := q.Order("created_at desc, id desc").Limit(size).Find(&out).Error
	if err != nil {
		return nil, errs.Persistence("page messages", err)
	}
	return out, nil
}
