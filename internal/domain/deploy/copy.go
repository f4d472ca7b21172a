package deploy

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// copyDirectory recursively copies srcDir's contents into destDir. The
// destination is removed and recreated first so files deleted between
// deploys do not stay served. Symlinks and non-regular files are rejected:
// untrusted build output must not reference host files or block the copy.
func copyDirectory(srcDir, destDir string) error {
	srcInfo, err := os.Stat(srcDir)
	if err != nil {
		return fmt.Errorf("stat source directory %q: %w", srcDir, err)
	}
	if !srcInfo.IsDir() {
		return fmt.Errorf("source path %q is not a directory", srcDir)
	}

	if err := os.RemoveAll(destDir); err != nil {
		return fmt.Errorf("remove destination directory %q: %w", destDir, err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create destination directory %q: %w", destDir, err)
	}

	return filepath.WalkDir(srcDir, func(srcPath string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		relPath, err := filepath.Rel(srcDir, srcPath)
		if err != nil {
			return fmt.Errorf("relative path for %q: %w", srcPath, err)
		}
		destPath := filepath.Join(destDir, relPath)

		if entry.Type()&os.ModeSymlink != 0 {
			return fmt.Errorf("symlink not allowed in deployment output: %q", srcPath)
		}
		if entry.IsDir() {
			return os.MkdirAll(destPath, 0o755)
		}
		if !entry.Type().IsRegular() {
			return fmt.Errorf("non-regular file not allowed in deployment output: %q", srcPath)
		}

		return copyFile(srcPath, destPath)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %q: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %q: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %q: %w", src, err)
	}
	return out.Close()
}
