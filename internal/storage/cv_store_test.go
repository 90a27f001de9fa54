package storage

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/job-board/internal/config"
	apperrors "github.com/spec-kit/job-board/pkg/util/errorutil"
)

func newTestStore(t *testing.T) *CVStore {
	t.Helper()
	store, err := NewCVStore(config.StorageConfig{UploadDir: filepath.Join(t.TempDir(), "cvs")}, nil)
	require.NoError(t, err)
	store.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC) }
	return store
}

func TestValidate(t *testing.T) {
	store := newTestStore(t)

	cases := []struct {
		name     string
		filename string
		size     int64
		code     string
	}{
		{"pdf accepted", "resume.pdf", 1024, ""},
		{"upper case docx accepted", "RESUME.DOCX", 1024, ""},
		{"doc accepted", "cv.doc", 1, ""},
		{"exe rejected", "cv.exe", 10, apperrors.CodeUnsupportedFormat},
		{"no extension rejected", "cv", 10, apperrors.CodeUnsupportedFormat},
		{"pdf at limit accepted", "cv.pdf", DefaultMaxBytes, ""},
		{"pdf over limit rejected", "cv.pdf", DefaultMaxBytes + 1, apperrors.CodeFileTooLarge},
		{"empty rejected", "cv.pdf", 0, apperrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Validate(tc.filename, tc.size)
			if tc.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperrors.IsCode(err, tc.code), "got %v", err)
		})
	}
}

func TestStore_GeneratesOwnerTimestampName(t *testing.T) {
	store := newTestStore(t)

	name, err := store.Store("user-1", "../../etc/passwd.pdf", 4, strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, "user-1_20240309_140506.pdf", name)

	f, info, err := store.Open(name)
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "data", string(body))
	assert.EqualValues(t, 4, info.Size())
}

func TestStore_NeverOverwrites(t *testing.T) {
	store := newTestStore(t)

	first, err := store.Store("user-1", "a.pdf", 5, strings.NewReader("first"))
	require.NoError(t, err)
	second, err := store.Store("user-1", "b.pdf", 6, strings.NewReader("second"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, "user-1_20240309_140506_1.pdf", second)

	f, _, err := store.Open(first)
	require.NoError(t, err)
	defer f.Close()
	body, _ := io.ReadAll(f)
	assert.Equal(t, "first", string(body))
}

func TestStore_RejectsBodyLargerThanDeclared(t *testing.T) {
	store := newTestStore(t)
	store.maxBytes = 8

	_, err := store.Store("user-1", "cv.pdf", 4, strings.NewReader("much more than eight bytes"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeFileTooLarge))

	files, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestOpen_RejectsTraversalAndMissing(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.Open("../secret.pdf")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, _, err = store.Open("nope.pdf")
	assert.ErrorIs(t, err, ErrFileMissing)
}

func TestRemoveAndList(t *testing.T) {
	store := newTestStore(t)

	name, err := store.Store("user-2", "cv.docx", 3, strings.NewReader("abc"))
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(store.dir, "subdir"), 0o750))

	files, err := store.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, name, files[0].Name)

	assert.True(t, store.Remove(name))
	assert.True(t, store.Remove(name), "removing a missing file is not a failure")
	assert.False(t, store.Exists(name))
}

func TestWriteArchive_SkipsMissing(t *testing.T) {
	store := newTestStore(t)

	name, err := store.Store("user-3", "cv.pdf", 5, strings.NewReader("hello"))
	require.NoError(t, err)

	var buf bytes.Buffer
	result, err := store.WriteArchive(&buf, []ArchiveEntry{
		{StoredName: name, EntryName: "Ana_Lopez_CV.pdf"},
		{StoredName: "gone.pdf", EntryName: "Ghost_CV.pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Written)
	assert.Equal(t, []string{"gone.pdf"}, result.Skipped)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "Ana_Lopez_CV.pdf", zr.File[0].Name)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "Jose_Nunez", SafeName("José  Núñez"))
	assert.Equal(t, "Senior_Go_Engineer", SafeName("Senior Go Engineer/"))
	assert.Equal(t, "file", SafeName("??"))
	assert.Equal(t, "Ana_Lopez_Backend_Dev", JoinName("Ana", " ", "López", "Backend Dev"))
}
