package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/docshield/redactor/internal/errors"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Write(ctx, "job-1/raw.pdf", []byte("payload")))

	got, err := store.Read(ctx, "job-1/raw.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestFileStoreMissingKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read(context.Background(), "nope.pdf")
	assert.ErrorIs(t, err, apperr.ErrStorageFailure)
}

func TestFileStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	for _, key := range []string{"../outside.pdf", "/etc/passwd", "a/../../b"} {
		assert.ErrorIs(t, store.Write(ctx, key, []byte("x")), apperr.ErrStorageFailure, key)
	}
}

func TestFactoryOpensRegisteredKind(t *testing.T) {
	root := t.TempDir()
	f := NewDefaultFactory()

	store, err := f.Open("file", map[string]string{"root": root})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Write(ctx, "doc.pdf", []byte("x")))
	got, err := store.Read(ctx, "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

func TestFactoryUnknownKind(t *testing.T) {
	f := NewDefaultFactory()
	_, err := f.Open("AzureBlob", nil)
	assert.ErrorIs(t, err, apperr.ErrStorageFailure)
}

func TestFactoryDuplicateKind(t *testing.T) {
	f := NewDefaultFactory()
	err := f.Register("file", func(map[string]string) (Store, error) { return nil, nil })
	assert.ErrorIs(t, err, apperr.ErrStorageFailure)
}

func TestJobStoreRoundTrip(t *testing.T) {
	store, err := OpenJobStore(filepath.Join(t.TempDir(), "jobs"))
	require.NoError(t, err)
	defer store.Close()

	rec := &JobRecord{
		ID:           "job-1",
		Stage:        "ANALYSE",
		Status:       "SUCCESS",
		Message:      "Redaction process complete",
		InputTokens:  120,
		OutputTokens: 40,
		TotalCost:    0.0021,
	}
	require.NoError(t, store.Put(rec))
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := store.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", got.Status)
	assert.Equal(t, 120, got.InputTokens)
	assert.InDelta(t, 0.0021, got.TotalCost, 1e-9)
}

func TestJobStoreGetMissing(t *testing.T) {
	store, err := OpenJobStore(filepath.Join(t.TempDir(), "jobs"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get("absent")
	assert.ErrorIs(t, err, apperr.ErrJobNotFound)
}

func TestJobStoreOverwriteKeepsCreatedAt(t *testing.T) {
	store, err := OpenJobStore(filepath.Join(t.TempDir(), "jobs"))
	require.NoError(t, err)
	defer store.Close()

	rec := &JobRecord{ID: "job-1", Stage: "ANALYSE", Status: "RUNNING"}
	require.NoError(t, store.Put(rec))
	created := rec.CreatedAt

	rec.Status = "SUCCESS"
	require.NoError(t, store.Put(rec))

	got, err := store.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", got.Status)
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestJobStoreList(t *testing.T) {
	store, err := OpenJobStore(filepath.Join(t.TempDir(), "jobs"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(&JobRecord{ID: "a", Stage: "ANALYSE", Status: "SUCCESS"}))
	require.NoError(t, store.Put(&JobRecord{ID: "b", Stage: "REDACT", Status: "FAIL"}))

	records, err := store.List()
	require.NoError(t, err)
	require.Len(t, records, 2)

	ids := []string{records[0].ID, records[1].ID}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestJobStorePutEmptyID(t *testing.T) {
	store, err := OpenJobStore(filepath.Join(t.TempDir(), "jobs"))
	require.NoError(t, err)
	defer store.Close()

	assert.ErrorIs(t, store.Put(&JobRecord{}), apperr.ErrInvalidJobID)
}
