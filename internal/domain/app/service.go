package app

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sitesmith/backend/internal/infrastructure/logging"
	"github.com/sitesmith/backend/internal/shared/errs"
	"github.com/sitesmith/backend/internal/shared/types"
)

const (
	maxNameLength   = 24
	maxPromptLength = 2000
)

// Classifier maps an initial prompt to a generation mode. It must be
// deterministic and fall back to the most general mode when ambiguous.
type Classifier func(prompt string) types.GenMode

// Service owns application lifecycle rules on top of the store.
type Service struct {
	store    *Store
	classify Classifier
	log      *logging.Logger
}

// NewService creates an application service.
func NewService(store *Store, classify Classifier, log *logging.Logger) *Service {
	return &Service{store: store, classify: classify, log: log}
}

// Store exposes the underlying store for collaborators that only read.
func (s *Service) Store() *Store { return s.store }

// Create validates the initial prompt, classifies the generation mode, and
// persists a new application. The name is derived from the prompt head.
func (s *Service) Create(initPrompt string, userID uint64) (*Application, error) {
	prompt := strings.TrimSpace(initPrompt)
	if prompt == "" {
		return nil, errs.Validation("initial prompt must not be empty")
	}
	if len(prompt) > maxPromptLength {
		return nil, errs.Newf(errs.KindValidation, "initial prompt exceeds %d characters", maxPromptLength)
	}
	if userID == 0 {
		return nil, errs.Validation("user id must not be empty")
	}

	mode := s.classify(prompt)

	a := &Application{
		Name:        nameFromPrompt(prompt),
		InitPrompt:  prompt,
		UserID:      userID,
		CodeGenType: mode.String(),
	}
	if err := s.store.Create(a); err != nil {
		return nil, err
	}

	s.log.Info("application created",
		zap.Uint64("app_id", a.ID),
		zap.String("mode", mode.String()),
	)
	return a, nil
}

// Get fetches an application and verifies ownership.
func (s *Service) Get(id, userID uint64) (*Application, error) {
	a, err := s.store.ByID(id)
	if err != nil {
		return nil, err
	}
	if err := RequireOwner(a, userID); err != nil {
		return nil, err
	}
	return a, nil
}

// RequireOwner rejects access by anyone but the owning user.
func RequireOwner(a *Application, userID uint64) error {
	if a.UserID != userID {
		return errs.Authorization("no access to this application")
	}
	return nil
}

// Mode resolves the application's generation mode, falling back to the
// classifier when the stored value is blank or unknown.
func (s *Service) Mode(a *Application) types.GenMode {
	mode, err := types.ParseMode(a.CodeGenType)
	if err != nil {
		return s.classify(a.InitPrompt)
	}
	return mode
}

func nameFromPrompt(prompt string) string {
	runes := []rune(prompt)
	if len(runes) <= maxNameLength {
		return prompt
	}
	return string(runes[:maxNameLength])
}
