package storage

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// allowedExts covers what recording devices actually produce. iPhones default
// to M4A; desktop capture tools mostly write WAV or MP3.
var allowedExts = []string{".m4a", ".mp3", ".wav", ".aac", ".ogg", ".caf", ".aiff", ".aif"}

// AudioStore saves uploaded recordings to disk. It is the capture boundary
// of the server: everything downstream only ever sees the returned path.
type AudioStore struct {
	Dir string
}

// NewAudioStore creates the upload directory if needed.
func NewAudioStore(dir string) (*AudioStore, error) {
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &AudioStore{Dir: dir}, nil
}

// ValidExt reports whether the filename has a supported audio extension.
func ValidExt(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range allowedExts {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Save writes an uploaded audio file under the store directory, keyed by the
// meeting id, and returns its path.
func (s *AudioStore) Save(file *multipart.FileHeader, meetingID uuid.UUID) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	dst := filepath.Join(s.Dir, meetingID.String()+ext)

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := out.ReadFrom(src); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return dst, nil
}
