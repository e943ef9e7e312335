package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ForsunJay/TGTEST/internal/application/port"
)

// LocalDocumentStore keeps attached documents on the local filesystem,
// laid out as <base>/<user id>/<date>/<uuid><ext>. The returned reference
// is the path relative to the base directory.
type LocalDocumentStore struct {
	baseDir string
	logger  *zap.Logger
	now     func() time.Time
}

// NewLocalDocumentStore creates a local document store
func NewLocalDocumentStore(baseDir string, logger *zap.Logger) *LocalDocumentStore {
	return &LocalDocumentStore{
		baseDir: baseDir,
		logger:  logger,
		now:     time.Now,
	}
}

// Store writes the document blob and returns its reference. The original
// filename contributes only its extension; the stored name is generated,
// so hostile filenames cannot escape the base directory.
func (s *LocalDocumentStore) Store(ctx context.Context, userID int64, filename string, blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", fmt.Errorf("empty document")
	}

	ext := sanitizeExt(filepath.Ext(filename))
	relPath := filepath.Join(
		fmt.Sprintf("%d", userID),
		s.now().Format("2006-01-02"),
		uuid.NewString()+ext,
	)
	fullPath := filepath.Join(s.baseDir, relPath)

	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create document directory",
			zap.String("path", filepath.Dir(fullPath)),
			zap.Error(err))
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, blob, 0644); err != nil {
		s.logger.Error("Failed to write document",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write document: %w", err)
	}

	s.logger.Debug("Document stored",
		zap.Int64("user_id", userID),
		zap.String("ref", relPath),
		zap.Int("size", len(blob)))

	return relPath, nil
}

// Open returns the absolute path of a stored document after checking the
// reference stays inside the base directory
func (s *LocalDocumentStore) Open(ref string) (string, error) {
	fullPath := filepath.Join(s.baseDir, ref)
	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}
	if _, err := os.Stat(fullPath); err != nil {
		return "", fmt.Errorf("document %s: %w", ref, err)
	}
	return fullPath, nil
}

// validatePath checks that the path is safe and within baseDir
func (s *LocalDocumentStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}

	return nil
}

// sanitizeExt keeps only a plain alphanumeric extension
func sanitizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext == "" || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

var _ port.DocumentStore = (*LocalDocumentStore)(nil)
