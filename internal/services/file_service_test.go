package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"imageupscaler/internal/models"
	"imageupscaler/internal/storage"

	"github.com/stretchr/testify/require"
)

type fileFixture struct {
	*testEnv
	uploads *UploadService
	files   *FileService
}

func newFileFixture(t *testing.T) *fileFixture {
	env := newTestEnv(t)
	return &fileFixture{
		testEnv: env,
		uploads: NewUploadService(env.store, env.blobs, NewLanczosUpscaler(env.blobs)),
		files:   NewFileService(env.store, env.blobs),
	}
}

func (f *fileFixture) upload(t *testing.T, owner uint, name string) *UploadResult {
	t.Helper()
	res, err := f.uploads.Upload(context.Background(), owner, name, bytes.NewReader(pngBytes(t, 10, 10)))
	require.NoError(t, err)
	return res
}

func readContent(t *testing.T, fc *FileContent) []byte {
	t.Helper()
	defer fc.Body.Close()
	data, err := io.ReadAll(fc.Body)
	require.NoError(t, err)
	return data
}

func TestFileService_HistoryScopedAndOrdered(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	first := f.upload(t, alice.ID, "one.png")
	second := f.upload(t, alice.ID, "two.png")
	f.upload(t, bob.ID, "bob.png")

	entries, err := f.files.History(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, second.PublicID, entries[0].UniqueID)
	require.Equal(t, first.PublicID, entries[1].UniqueID)
	require.Equal(t, "two.png", entries[0].OriginalFilename)
	require.Equal(t, models.StatusCompleted, entries[0].Status)
	require.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}$`, entries[0].Date)

	empty, err := f.files.History(ctx, 999)
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)
}

func TestFileService_ViewAndDownload(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	res := f.upload(t, alice.ID, "cat.png")

	view, err := f.files.View(ctx, res.PublicID, nil)
	require.NoError(t, err)
	require.Equal(t, "image/png", view.ContentType)
	w, _ := decodeSize(t, readContent(t, view))
	require.Equal(t, 10, w)

	dl, err := f.files.Download(ctx, res.PublicID, nil)
	require.NoError(t, err)
	require.Equal(t, "upscaled_cat.png", dl.Filename)
	w, h := decodeSize(t, readContent(t, dl))
	require.Equal(t, 20, w)
	require.Equal(t, 20, h)
}

func TestFileService_UnknownAndMalformedIdentifiers(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	res := f.upload(t, alice.ID, "cat.png")

	// Префикс настоящего идентификатора больше не находит запись.
	for _, id := range []string{NewIdentifier(), "", "%", res.PublicID[:8], res.PublicID + ".png"} {
		_, err := f.files.View(ctx, id, nil)
		require.ErrorIs(t, err, ErrNotFound, id)
		_, err = f.files.Download(ctx, id, nil)
		require.ErrorIs(t, err, ErrNotFound, id)
	}
}

func TestFileService_DownloadNotCompleted(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	f.uploads = NewUploadService(f.store, f.blobs, TransformerFunc(func(context.Context, string) error {
		return errors.New("fail")
	}))
	res := f.upload(t, alice.ID, "cat.png")

	_, err := f.files.Download(ctx, res.PublicID, nil)
	require.ErrorIs(t, err, ErrConflict)
	require.Equal(t, "File is still failed.", PublicMessage(err, ""))

	// Исходник по-прежнему можно посмотреть.
	view, err := f.files.View(ctx, res.PublicID, nil)
	require.NoError(t, err)
	require.NotEmpty(t, readContent(t, view))

	rec, err := f.store.GetFileByPublicID(ctx, res.PublicID)
	require.NoError(t, err)
	require.NoError(t, f.store.UpdateFileStatus(ctx, rec.ID, models.StatusPending))
	_, err = f.files.Download(ctx, res.PublicID, nil)
	require.Equal(t, "File is still pending.", PublicMessage(err, ""))
}

func TestFileService_OwnerScoped(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	res := f.upload(t, alice.ID, "cat.png")

	f.files.OwnerScoped = true

	_, err := f.files.View(ctx, res.PublicID, nil)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.files.Download(ctx, res.PublicID, &bob.ID)
	require.ErrorIs(t, err, ErrNotFound)

	dl, err := f.files.Download(ctx, res.PublicID, &alice.ID)
	require.NoError(t, err)
	require.NotEmpty(t, readContent(t, dl))
}

func TestFileService_Delete(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	res := f.upload(t, alice.ID, "cat.png")

	err := f.files.Delete(ctx, bob.ID, res.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, "File not found or access denied", PublicMessage(err, ""))

	require.NoError(t, f.files.Delete(ctx, alice.ID, res.ID))

	key := res.PublicID + ".png"
	_, err = os.Stat(filepath.Join(f.blobs.Dir(storage.Originals), key))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(f.blobs.Dir(storage.Processed), key))
	require.True(t, os.IsNotExist(err))

	_, err = f.files.Download(ctx, res.PublicID, nil)
	require.ErrorIs(t, err, ErrNotFound)

	err = f.files.Delete(ctx, alice.ID, res.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileService_DeleteToleratesMissingBlobs(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	res := f.upload(t, alice.ID, "cat.png")

	require.NoError(t, f.blobs.Remove(ctx, storage.Processed, res.PublicID+".png"))
	require.NoError(t, f.files.Delete(ctx, alice.ID, res.ID))

	entries, err := f.files.History(ctx, alice.ID)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestFileService_MissingBlobIsNotFound(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	res := f.upload(t, alice.ID, "cat.png")

	require.NoError(t, f.blobs.Remove(ctx, storage.Originals, res.PublicID+".png"))
	_, err := f.files.View(ctx, res.PublicID, nil)
	require.ErrorIs(t, err, ErrNotFound)
}
