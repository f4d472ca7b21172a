// Package artifact turns raw generation output into validated files on disk.
// Text modes parse fenced code blocks out of the accumulated reply; project
// modes validate the files the write_file tool produced. All writes are
// contained to the per-application output directory.
package artifact

import (
	"path/filepath"
	"strings"

	"github.com/sitesmith/backend/internal/shared/errs"
	"github.com/sitesmith/backend/internal/shared/types"
)

// OutputDir returns the output directory for one (application, mode) pair.
// Deterministic naming lets regeneration overwrite in place.
func OutputDir(root string, mode types.GenMode, appID uint64) string {
	return filepath.Join(root, mode.DirName(appID))
}

// SafeJoin resolves rel under root and rejects any path that would escape
// it. Absolute paths and traversal via ".." are refused.
func SafeJoin(root, rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", errs.Validation("file path must not be empty")
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, "\\") {
		return "", errs.Newf(errs.KindValidation, "absolute path %q not allowed", rel)
	}

	abs := filepath.Join(root, filepath.FromSlash(rel))
	escaped, err := filepath.Rel(root, abs)
	if err != nil {
		return "", errs.Newf(errs.KindValidation, "invalid path %q", rel)
	}
	if escaped == ".." || strings.HasPrefix(escaped, ".."+string(filepath.Separator)) {
		return "", errs.Newf(errs.KindValidation, "path %q escapes the output directory", rel)
	}
	return abs, nil
}
