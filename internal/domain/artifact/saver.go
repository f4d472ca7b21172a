package artifact

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sitesmith/backend/internal/infrastructure/logging"
	"github.com/sitesmith/backend/internal/shared/errs"
	"github.com/sitesmith/backend/internal/shared/types"
)

// Saver persists artifacts under the output root. Text-mode saves stage into
// a temp directory and swap it in whole, so a crash mid-save never leaves a
// half-written output directory behind.
type Saver struct {
	root string
	log  *logging.Logger
}

// NewSaver creates a saver rooted at the generation output directory.
func NewSaver(root string, log *logging.Logger) *Saver {
	return &Saver{root: root, log: log}
}

// Save writes the artifact and returns its output directory.
func (s *Saver) Save(appID uint64, a types.CodeArtifact) (string, error) {
	dir := OutputDir(s.root, a.Mode(), appID)

	switch v := a.(type) {
	case types.HTMLArtifact:
		return dir, s.stage(dir, map[string]string{
			"index.html": v.HTML,
		})
	case types.MultiFileArtifact:
		return dir, s.stage(dir, map[string]string{
			"index.html": v.HTML,
			"style.css":  v.CSS,
			"script.js":  v.JS,
		})
	case types.ProjectArtifact:
		return dir, s.verifyProject(dir, v.WrittenPaths)
	default:
		return "", errs.Newf(errs.KindValidation, "unsupported artifact type %T", a)
	}
}

// stage writes files into a sibling temp directory and swaps it over the
// target in one rename.
func (s *Saver) stage(target string, files map[string]string) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return errs.Persistence("create output root", err)
	}
	stage, err := os.MkdirTemp(s.root, ".stage-")
	if err != nil {
		return errs.Persistence("create staging directory", err)
	}
	defer os.RemoveAll(stage)

	for name, content := range files {
		if err := os.WriteFile(filepath.Join(stage, name), []byte(content), 0o644); err != nil {
			return errs.Persistence("write "+name, err)
		}
	}

	if err := os.RemoveAll(target); err != nil {
		return errs.Persistence("clear output directory", err)
	}
	if err := os.Rename(stage, target); err != nil {
		return errs.Persistence("publish output directory", err)
	}

	s.log.Debug("saved artifact", zap.String("dir", target), zap.Int("files", len(files)))
	return nil
}

// verifyProject confirms the tool-written files actually landed inside the
// output directory. The writes already happened during generation.
func (s *Saver) verifyProject(dir string, written []string) error {
	if len(written) == 0 {
		return errs.New(errs.KindGeneration, "generation wrote no project files")
	}
	for _, rel := range written {
		abs, err := SafeJoin(dir, rel)
		if err != nil {
			return err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return errs.Persistence("missing project file "+rel, err)
		}
		if info.IsDir() {
			return errs.Newf(errs.KindPersistence, "project path %s is a directory", rel)
		}
	}
	return nil
}
