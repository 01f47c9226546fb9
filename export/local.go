package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"webshrink/logger"
)

// UploadToLocal writes the content below baseDir/folder. accessInfo may
// set "folder"; it must stay inside baseDir.
func UploadToLocal(ctx context.Context, baseDir string, accessInfo map[string]string, filename string, reader io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if baseDir == "" {
		return "", fmt.Errorf("local export directory is not configured")
	}

	fullDir := filepath.Join(baseDir, filepath.Clean("/"+accessInfo["folder"]))
	rel, err := filepath.Rel(baseDir, fullDir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("folder %q escapes the export directory", accessInfo["folder"])
	}
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name %q", filename)
	}
	fullPath := filepath.Join(fullDir, name)

	if err := os.MkdirAll(fullDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", fullPath, err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to write to file %s: %w", fullPath, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close file %s: %w", fullPath, err)
	}

	logger.Infof("Successfully saved file '%s' to '%s'", name, fullPath)
	return fullPath, nil
}
