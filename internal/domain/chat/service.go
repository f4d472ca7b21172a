package chat

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sitesmith/backend/internal/infrastructure/logging"
	"github.com/sitesmith/backend/internal/shared/errs"
)

// MaxPageSize caps cursor pages for history display.
const MaxPageSize = 50

// Service validates chat log invariants on top of the store.
type Service struct {
	store *Store
	log   *logging.Logger
}

// NewService creates a chat history service.
func NewService(store *Store, log *logging.Logger) *Service {
	return &Service{store: store, log: log}
}

// AddMessage validates role invariants and appends a message, returning its
// id. An ai message requires a parent that exists, is a user message, and
// belongs to the same application.
func (s *Service) AddMessage(appID, userID uint64, role, content string, parentID *uint64) (uint64, error) {
	if appID == 0 {
		return 0, errs.Validation("app id must not be empty")
	}
	if userID == 0 {
		return 0, errs.Validation("user id must not be empty")
	}
	if strings.TrimSpace(content) == "" {
		return 0, errs.Validation("message content must not be empty")
	}
	if role != RoleUser && role != RoleAI {
		return 0, errs.Newf(errs.KindValidation, "unsupported message role %q", role)
	}

	if role == RoleAI {
		if parentID == nil || *parentID == 0 {
			return 0, errs.Validation("ai message must reference a user message")
		}
		parent, err := s.store.ByID(*parentID)
		if err != nil {
			return 0, err
		}
		if parent.Role != RoleUser {
			return 0, errs.Validation("ai message may only reply to a user message")
		}
		if parent.AppID != appID {
			return 0, errs.Validation("parent message belongs to a different application")
		}
	} else if parentID != nil {
		return 0, errs.Validation("user message must not carry a parent")
	}

	m := &Message{
		AppID:    appID,
		UserID:   userID,
		Role:     role,
		Content:  content,
		ParentID: parentID,
	}
	if err := s.store.Insert(m); err != nil {
		return 0, err
	}
	return m.ID, nil
}

// Get fetches a message by id.
func (s *Service) Get(id uint64) (*Message, error) {
	return s.store.ByID(id)
}

// DeleteAIChildren removes every ai reply of a user message, making room for
// an idempotent replacement on retry.
func (s *Service) DeleteAIChildren(parentID uint64) error {
	if parentID == 0 {
		return errs.Validation("parent message id must not be empty")
	}
	return s.store.DeleteAIChildren(parentID)
}

// AIChildren lists the ai replies of a user message.
func (s *Service) AIChildren(parentID uint64) ([]Message, error) {
	return s.store.AIChildren(parentID)
}

// DeleteByApp removes an application's entire chat log.
func (s *Service) DeleteByApp(appID uint64) error {
	if appID == 0 {
		return errs.Validation("app id must not be empty")
	}
	return s.store.DeleteByApp(appID)
}

// Context returns the most recent maxCount messages in ascending
// chronological order. History load failures are non-fatal for the session
// cache, so this logs and returns an empty slice instead of failing.
func (s *Service) Context(appID uint64, maxCount int) []Message {
	if appID == 0 || maxCount <= 0 {
		return nil
	}
	msgs, err := s.store.Recent(appID, maxCount)
	if err != nil {
		s.log.Warn("failed to load chat context",
			zap.Uint64("app_id", appID),
			zap.Error(err),
		)
		return nil
	}
	return msgs
}

// Page returns up to size messages created strictly before the cursor,
// newest first. Size is capped at MaxPageSize.
func (s *Service) Page(appID uint64, before time.Time, size int) ([]Message, error) {
	if appID == 0 {
		return nil, errs.Validation("app id must not be empty")
	}
	if size <= 0 || size > MaxPageSize {
		return nil, errs.Newf(errs.KindValidation, "page size must be between 1 and %d", MaxPageSize)
	}
	return s.store.Page(appID, before, size)
}
