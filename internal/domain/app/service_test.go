package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesmith/backend/internal/infrastructure/logging"
	"github.com/sitesmith/backend/internal/infrastructure/persistence"
	"github.com/sitesmith/backend/internal/shared/errs"
	"github.com/sitesmith/backend/internal/shared/types"
)

func fixedClassifier(mode types.GenMode) Classifier {
	return func(string) types.GenMode { return mode }
}

func newService(t *testing.T, classify Classifier) *Service {
	t.Helper()
	db, err := persistence.OpenMemory(&Application{})
	require.NoError(t, err)
	return NewService(NewStore(db), classify, logging.Nop())
}

func TestCreateValidation(t *testing.T) {
	s := newService(t, fixedClassifier(types.ModeMultiFile))

	tests := []struct {
		name   string
		prompt string
		userID uint64
	}{
		{"empty prompt", "", 1},
		{"blank prompt", "   ", 1},
		{"oversized prompt", strings.Repeat("x", 2001), 1},
		{"missing user", "a website", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(tt.prompt, tt.userID)
			require.Error(t, err)
			assert.True(t, errs.IsKind(err, errs.KindValidation))
		})
	}
}

func TestCreateStoresClassifiedMode(t *testing.T) {
	s := newService(t, fixedClassifier(types.ModeVueProject))

	a, err := s.Create("a vue dashboard", 1)
	require.NoError(t, err)
	assert.NotZero(t, a.ID)
	assert.Equal(t, "vue_project", a.CodeGenType)
	assert.Equal(t, "a vue dashboard", a.InitPrompt)
}

func TestCreateTruncatesNameRuneSafe(t *testing.T) {
	s := newService(t, fixedClassifier(types.ModeMultiFile))

	prompt := strings.Repeat("日", 40)
	a, err := s.Create(prompt, 1)
	require.NoError(t, err)
	assert.Equal(t, 24, len([]rune(a.Name)))
	assert.Equal(t, strings.Repeat("日", 24), a.Name)
}

func TestGetEnforcesOwnership(t *testing.T) {
	s := newService(t, fixedClassifier(types.ModeMultiFile))

	a, err := s.Create("a website", 1)
	require.NoError(t, err)

	_, err = s.Get(a.ID, 2)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindAuthorization))

	got, err := s.Get(a.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestGetUnknownIsNotFound(t *testing.T) {
	s := newService(t, fixedClassifier(types.ModeMultiFile))

	_, err := s.Get(999, 1)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestModeFallsBackToClassifier(t *testing.T) {
	s := newService(t, fixedClassifier(types.ModeHTML))

	a := &Application{CodeGenType: "react_project", InitPrompt: "x"}
	assert.Equal(t, types.ModeReactProject, s.Mode(a))

	// A stored value from an older release that no longer parses.
	a.CodeGenType = "legacy_mode"
	assert.Equal(t, types.ModeHTML, s.Mode(a))
}

func TestDeployKeyRoundTrip(t *testing.T) {
	s := newService(t, fixedClassifier(types.ModeMultiFile))

	a, err := s.Create("a website", 1)
	require.NoError(t, err)

	exists, err := s.Store().DeployKeyExists("abc123")
	require.NoError(t, err)
	assert.False(t, exists)

	now := a.CreatedAt
	require.NoError(t, s.Store().UpdateDeploy(a.ID, "abc123", now))

	exists, err = s.Store().DeployKeyExists("abc123")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := s.Get(a.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, got.DeployKey)
	assert.Equal(t, "abc123", *got.DeployKey)
}
