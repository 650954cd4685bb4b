package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidPath is returned for references that escape the storage root
var ErrInvalidPath = errors.New("invalid storage path")

// LocalStorage keeps payment receipts on the local filesystem
type LocalStorage struct {
	basePath string
	now      func() time.Time
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath, now: time.Now}, nil
}

// Save writes r under subDir/YYYY/MM with a random name keeping the
// extension of filename, and returns the reference to store on the record.
func (s *LocalStorage) Save(r io.Reader, filename, subDir string) (string, error) {
	dir := filepath.Join(s.basePath, filepath.Clean(subDir), s.now().Format("2006/01"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	filePath := filepath.Join(dir, generateID()+strings.ToLower(filepath.Ext(filename)))
	dst, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(r, MaxFileSize()+1)); err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	if info, err := dst.Stat(); err == nil && info.Size() > MaxFileSize() {
		dst.Close()
		os.Remove(filePath)
		return "", fmt.Errorf("file exceeds %d bytes", MaxFileSize())
	}

	relPath, _ := filepath.Rel(s.basePath, filePath)
	return filepath.ToSlash(relPath), nil
}

// Open returns a stored file for reading
func (s *LocalStorage) Open(ref string) (*os.File, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Exists checks if a file exists
func (s *LocalStorage) Exists(ref string) bool {
	path, err := s.resolve(ref)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func (s *LocalStorage) resolve(ref string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(ref, "/")))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.basePath, clean), nil
}

// generateID creates a unique identifier for filenames
func generateID() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// IsValidContentType checks if the content type is allowed for receipts
func IsValidContentType(contentType string) bool {
	switch contentType {
	case "application/pdf", "image/jpeg", "image/jpg", "image/png":
		return true
	}
	return false
}

// MaxFileSize returns the maximum allowed file size (10MB)
func MaxFileSize() int64 {
	return 10 * 1024 * 1024
}
