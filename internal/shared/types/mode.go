package types

import (
	"fmt"
	"strings"
)

// GenMode identifies the generation strategy for an application.
type GenMode string

const (
	ModeHTML         GenMode = "html"
	ModeMultiFile    GenMode = "multi_file"
	ModeVueProject   GenMode = "vue_project"
	ModeReactProject GenMode = "react_project"
)

// Modes lists every supported generation mode.
func Modes() []GenMode {
	return []GenMode{ModeHTML, ModeMultiFile, ModeVueProject, ModeReactProject}
}

// ParseMode converts a stored string into a GenMode.
func ParseMode(s string) (GenMode, error) {
	switch GenMode(strings.TrimSpace(strings.ToLower(s))) {
	case ModeHTML:
		return ModeHTML, nil
	case ModeMultiFile:
		return ModeMultiFile, nil
	case ModeVueProject:
		return ModeVueProject, nil
	case ModeReactProject:
		return ModeReactProject, nil
	default:
		return "", fmt.Errorf("unsupported generation mode %q", s)
	}
}

func (m GenMode) String() string { return string(m) }

// IsProject reports whether the mode produces output through tool-driven
// file writes instead of a single accumulated text result.
func (m GenMode) IsProject() bool {
	return m == ModeVueProject || m == ModeReactProject
}

// Buildable reports whether deploying this mode requires an external build
// step before publishing.
func (m GenMode) Buildable() bool { return m.IsProject() }

// DirName returns the per-application output directory name for the mode.
// The naming is deterministic so regeneration overwrites in place.
func (m GenMode) DirName(appID uint64) string {
	return fmt.Sprintf("%s_%d", m, appID)
}
