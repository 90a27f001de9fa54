package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/job-board/internal/config"
	apperrors "github.com/spec-kit/job-board/pkg/util/errorutil"
)

// AllowedExtensions lists accepted CV formats.
var AllowedExtensions = []string{".pdf", ".doc", ".docx"}

// DefaultMaxBytes is the upload ceiling used when none is configured.
const DefaultMaxBytes int64 = 5 * 1024 * 1024

const (
	timestampLayout = "20060102_150405"
	maxNameAttempts = 20
)

var (
	// ErrFileMissing means the reference exists but the bytes are gone.
	ErrFileMissing = errors.New("stored file missing")
	// ErrInvalidName guards against anything that is not a plain stored name.
	ErrInvalidName = errors.New("invalid stored file name")
)

// StoredFile describes a file present in the CV directory.
type StoredFile struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// CVStore persists uploaded CVs in a flat directory keyed by generated name.
type CVStore struct {
	dir      string
	maxBytes int64
	now      func() time.Time
	logger   *zap.Logger
}

// NewCVStore creates the upload directory when needed.
func NewCVStore(cfg config.StorageConfig, logger *zap.Logger) (*CVStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := cfg.UploadDir
	if dir == "" {
		dir = filepath.Join("uploads", "cvs")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cv dir: %w", err)
	}
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &CVStore{dir: dir, maxBytes: maxBytes, now: time.Now, logger: logger}, nil
}

// MaxBytes returns the upload ceiling.
func (s *CVStore) MaxBytes() int64 {
	return s.maxBytes
}

// Validate checks the client filename's extension and the declared size.
// It returns the normalized extension.
func (s *CVStore) Validate(filename string, size int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtension(ext) {
		return "", apperrors.NewUnsupportedFormat(AllowedExtensions)
	}
	if size > s.maxBytes {
		return "", apperrors.NewFileTooLarge(s.maxBytes)
	}
	if size == 0 {
		return "", apperrors.NewValidationError("cv file is empty", nil)
	}
	return ext, nil
}

// Store validates and writes the upload under a generated name of the form
// <owner>_<YYYYMMDD_HHMMSS><ext>. The client filename only contributes its
// extension. Files are created exclusively and never overwritten.
func (s *CVStore) Store(ownerID, filename string, size int64, r io.Reader) (string, error) {
	ext, err := s.Validate(filename, size)
	if err != nil {
		return "", err
	}

	base := SafeName(ownerID) + "_" + s.now().UTC().Format(timestampLayout)
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := base + ext
		if attempt > 0 {
			name = fmt.Sprintf("%s_%d%s", base, attempt, ext)
		}
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create cv: %w", err)
		}
		if err := s.write(f, r); err != nil {
			s.Remove(name)
			return "", err
		}
		return name, nil
	}
	return "", fmt.Errorf("create cv: no free name for %s", base)
}

func (s *CVStore) write(f *os.File, r io.Reader) error {
	written, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	if err != nil {
		return fmt.Errorf("write cv: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("close cv: %w", closeErr)
	}
	if written > s.maxBytes {
		return apperrors.NewFileTooLarge(s.maxBytes)
	}
	return nil
}

// Open returns the stored file for reading. The caller closes it.
func (s *CVStore) Open(name string) (*os.File, fs.FileInfo, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrFileMissing
	}
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, nil, ErrFileMissing
	}
	return f, info, nil
}

// Exists reports whether name is present in storage.
func (s *CVStore) Exists(name string) bool {
	path, err := s.path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes name, logging instead of failing; a missing file is not an error.
func (s *CVStore) Remove(name string) bool {
	path, err := s.path(name)
	if err != nil {
		s.logger.Warn("refusing to remove cv", zap.String("file", name), zap.Error(err))
		return false
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("failed to remove cv", zap.String("file", name), zap.Error(err))
		return false
	}
	return true
}

// List returns the regular files in the CV directory sorted by name.
func (s *CVStore) List() ([]StoredFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	files := make([]StoredFile, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, StoredFile{Name: entry.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (s *CVStore) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name ||
		strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name), nil
}

func allowedExtension(ext string) bool {
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
