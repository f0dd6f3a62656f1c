package services

import (
	"bytes"
	"context"
	"image"
	"io"
	"testing"

	"imageupscaler/internal/storage"

	"github.com/stretchr/testify/require"
)

func readBlob(t *testing.T, s storage.BlobStore, area storage.Area, key string) []byte {
	t.Helper()
	b, err := s.Open(context.Background(), area, key)
	require.NoError(t, err)
	defer b.Close()
	data, err := io.ReadAll(b)
	require.NoError(t, err)
	return data
}

func TestLanczosUpscaler_DoublesPNG(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.blobs.Put(ctx, storage.Originals, "k.png", bytes.NewReader(pngBytes(t, 10, 7)))
	require.NoError(t, err)

	require.NoError(t, NewLanczosUpscaler(env.blobs).Transform(ctx, "k.png"))

	w, h := decodeSize(t, readBlob(t, env.blobs, storage.Processed, "k.png"))
	require.Equal(t, 20, w)
	require.Equal(t, 14, h)
}

func TestLanczosUpscaler_DoublesJPEG(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.blobs.Put(ctx, storage.Originals, "k.jpeg", bytes.NewReader(jpegBytes(t, 8, 5)))
	require.NoError(t, err)

	require.NoError(t, NewLanczosUpscaler(env.blobs).Transform(ctx, "k.jpeg"))

	w, h := decodeSize(t, readBlob(t, env.blobs, storage.Processed, "k.jpeg"))
	require.Equal(t, 16, w)
	require.Equal(t, 10, h)
}

func TestLanczosUpscaler_MissingKeyFailsEveryTime(t *testing.T) {
	env := newTestEnv(t)
	u := NewLanczosUpscaler(env.blobs)

	for i := 0; i < 3; i++ {
		require.NotPanics(t, func() {
			err := u.Transform(context.Background(), "missing.png")
			require.ErrorIs(t, err, storage.ErrNotExist)
		})
	}
}

func TestLanczosUpscaler_CorruptImage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.blobs.Put(ctx, storage.Originals, "bad.png", bytes.NewReader([]byte("not an image")))
	require.NoError(t, err)

	require.Error(t, NewLanczosUpscaler(env.blobs).Transform(ctx, "bad.png"))
	_, err = env.blobs.Open(ctx, storage.Processed, "bad.png")
	require.ErrorIs(t, err, storage.ErrNotExist)
}

func TestLanczosUpscaler_UnknownExtension(t *testing.T) {
	env := newTestEnv(t)
	require.Error(t, NewLanczosUpscaler(env.blobs).Transform(context.Background(), "k.xyz"))
}

func TestLanczosUpscaler_RejectsHugeDimensionsBeforeDecode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.blobs.Put(ctx, storage.Originals, "huge.png", bytes.NewReader(pngHeader(30000, 30000)))
	require.NoError(t, err)

	err = NewLanczosUpscaler(env.blobs).Transform(ctx, "huge.png")
	require.ErrorIs(t, err, ErrImageTooLarge)
	_, err = env.blobs.Open(ctx, storage.Processed, "huge.png")
	require.ErrorIs(t, err, storage.ErrNotExist)
}

func TestLanczosUpscaler_MaxPixels(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.blobs.Put(ctx, storage.Originals, "k.png", bytes.NewReader(pngBytes(t, 10, 10)))
	require.NoError(t, err)

	u := NewLanczosUpscaler(env.blobs)
	u.MaxPixels = 99
	require.ErrorIs(t, u.Transform(ctx, "k.png"), ErrImageTooLarge)

	u.MaxPixels = 100
	require.NoError(t, u.Transform(ctx, "k.png"))
}

func TestLanczosUpscaler_FlattensAlphaOntoWhite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.blobs.Put(ctx, storage.Originals, "clear.png", bytes.NewReader(transparentPNG(t, 4, 3)))
	require.NoError(t, err)

	require.NoError(t, NewLanczosUpscaler(env.blobs).Transform(ctx, "clear.png"))

	img, _, err := image.Decode(bytes.NewReader(readBlob(t, env.blobs, storage.Processed, "clear.png")))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
	for _, p := range []image.Point{{0, 0}, {4, 3}, {7, 5}} {
		r, g, b, a := img.At(p.X, p.Y).RGBA()
		require.Equal(t, uint32(0xffff), a)
		require.Greater(t, r, uint32(0xf000))
		require.Greater(t, g, uint32(0xf000))
		require.Greater(t, b, uint32(0xf000))
	}
}

func TestTransformerFunc(t *testing.T) {
	var got string
	var tr Transformer = TransformerFunc(func(_ context.Context, key string) error {
		got = key
		return nil
	})
	require.NoError(t, tr.Transform(context.Background(), "a.png"))
	require.Equal(t, "a.png", got)
}
