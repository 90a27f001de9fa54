package storage

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// ArchiveEntry maps a stored CV to the name it gets inside the zip.
type ArchiveEntry struct {
	StoredName string
	EntryName  string
}

// ArchiveResult summarizes a written archive.
type ArchiveResult struct {
	Written int
	Skipped []string
}

// WriteArchive streams entries into a zip on w. Entries whose file vanished
// are skipped and logged; other errors abort.
func (s *CVStore) WriteArchive(w io.Writer, entries []ArchiveEntry) (ArchiveResult, error) {
	var result ArchiveResult
	zw := zip.NewWriter(w)

	for _, entry := range entries {
		err := s.addToArchive(zw, entry)
		if errors.Is(err, ErrFileMissing) || errors.Is(err, ErrInvalidName) {
			s.logger.Warn("skipping cv missing from storage", zap.String("file", entry.StoredName))
			result.Skipped = append(result.Skipped, entry.StoredName)
			continue
		}
		if err != nil {
			_ = zw.Close()
			return result, err
		}
		result.Written++
	}

	if err := zw.Close(); err != nil {
		return result, fmt.Errorf("finish archive: %w", err)
	}
	return result, nil
}

func (s *CVStore) addToArchive(zw *zip.Writer, entry ArchiveEntry) error {
	f, info, err := s.Open(entry.StoredName)
	if err != nil {
		return err
	}
	defer f.Close()

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = entry.EntryName
	header.Method = zip.Deflate
	header.Modified = info.ModTime().UTC().Truncate(time.Second)

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("add %s: %w", entry.EntryName, err)
	}
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("copy %s: %w", entry.EntryName, err)
	}
	return nil
}
