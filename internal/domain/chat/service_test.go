package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesmith/backend/internal/infrastructure/logging"
	"github.com/sitesmith/backend/internal/infrastructure/persistence"
	"github.com/sitesmith/backend/internal/shared/errs"
)

func newService(t *testing.T) *Service {
	t.Helper()
	db, err := persistence.OpenMemory(&Message{})
	require.NoError(t, err)
	return NewService(NewStore(db), logging.Nop())
}

func TestAddMessageValidation(t *testing.T) {
	s := newService(t)

	parentID := uint64(1)
	tests := []struct {
		name     string
		appID    uint64
		userID   uint64
		role     string
		content  string
		parentID *uint64
	}{
		{"missing app", 0, 1, RoleUser, "hi", nil},
		{"missing user", 1, 0, RoleUser, "hi", nil},
		{"empty content", 1, 1, RoleUser, "  ", nil},
		{"bad role", 1, 1, "system", "hi", nil},
		{"ai without parent", 1, 1, RoleAI, "hi", nil},
		{"user with parent", 1, 1, RoleUser, "hi", &parentID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddMessage(tt.appID, tt.userID, tt.role, tt.content, tt.parentID)
			require.Error(t, err)
			assert.True(t, errs.IsKind(err, errs.KindValidation))
		})
	}
}

func TestAddMessageParentInvariants(t *testing.T) {
	s := newService(t)

	userMsg, err := s.AddMessage(1, 1, RoleUser, "make a site", nil)
	require.NoError(t, err)

	// Replying to a message of another application is rejected.
	_, err = s.AddMessage(2, 1, RoleAI, "reply", &userMsg)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindValidation))

	aiMsg, err := s.AddMessage(1, 1, RoleAI, "reply", &userMsg)
	require.NoError(t, err)

	// An ai message cannot be a parent.
	_, err = s.AddMessage(1, 1, RoleAI, "reply to reply", &aiMsg)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestDeleteAIChildrenKeepsUserMessage(t *testing.T) {
	s := newService(t)

	userMsg, err := s.AddMessage(1, 1, RoleUser, "make a site", nil)
	require.NoError(t, err)
	_, err = s.AddMessage(1, 1, RoleAI, "first try", &userMsg)
	require.NoError(t, err)
	_, err = s.AddMessage(1, 1, RoleAI, "second try", &userMsg)
	require.NoError(t, err)

	require.NoError(t, s.DeleteAIChildren(userMsg))

	replies, err := s.AIChildren(userMsg)
	require.NoError(t, err)
	assert.Empty(t, replies)

	// The user message survives.
	m, err := s.Get(userMsg)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, m.Role)
}

func TestContextReturnsAscendingWindow(t *testing.T) {
	s := newService(t)

	for i := 0; i < 5; i++ {
		id, err := s.AddMessage(1, 1, RoleUser, "prompt", nil)
		require.NoError(t, err)
		_, err = s.AddMessage(1, 1, RoleAI, "reply", &id)
		require.NoError(t, err)
	}

	msgs := s.Context(1, 4)
	require.Len(t, msgs, 4)
	for i := 1; i < len(msgs); i++ {
		assert.True(t, !msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
		assert.Greater(t, msgs[i].ID, msgs[i-1].ID)
	}
	// The window holds the newest messages.
	assert.Equal(t, RoleAI, msgs[len(msgs)-1].Role)
}

func TestContextFailureIsNonFatal(t *testing.T) {
	s := newService(t)
	assert.Nil(t, s.Context(0, 10))
	assert.Nil(t, s.Context(1, 0))
}

func TestPageCapsSize(t *testing.T) {
	s := newService(t)

	_, err := s.Page(1, time.Time{}, 0)
	require.Error(t, err)
	_, err = s.Page(1, time.Time{}, MaxPageSize+1)
	require.Error(t, err)

	msgs, err := s.Page(1, time.Time{}, MaxPageSize)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestPageNewestFirst(t *testing.T) {
	s := newService(t)

	for i := 0; i < 3; i++ {
		_, err := s.AddMessage(1, 1, RoleUser, "prompt", nil)
		require.NoError(t, err)
	}

	msgs, err := s.Page(1, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Greater(t, msgs[0].ID, msgs[1].ID)
	assert.Greater(t, msgs[1].ID, msgs[2].ID)
}
