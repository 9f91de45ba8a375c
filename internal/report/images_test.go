package report

import (
	"bytes"
	"context"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nestcheck/internal/testutil"
)

func TestPrepareImage_KeepsSmallImages(t *testing.T) {
	path := testutil.WritePNG(t, t.TempDir(), "small.png", 120, 80)

	img, err := PrepareImage(path, MaxImageDim, JPEGQuality)
	require.NoError(t, err)
	assert.Equal(t, 120, img.Width)
	assert.Equal(t, 80, img.Height)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(img.JPEG))
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Width)
}

func TestPrepareImage_Downscales(t *testing.T) {
	path := testutil.WriteJPEG(t, t.TempDir(), "big.jpg", 400, 100)

	img, err := PrepareImage(path, 200, JPEGQuality)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Width)
	assert.Equal(t, 50, img.Height)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(img.JPEG))
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestPrepareImage_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := PrepareImage(dir+"/missing.png", MaxImageDim, JPEGQuality)
	assert.Error(t, err)

	_, err = PrepareImage(testutil.WriteCorrupt(t, dir, "bad.png"), MaxImageDim, JPEGQuality)
	assert.ErrorContains(t, err, "decode")
}

func TestPrepareImages_SkipsUnreadable(t *testing.T) {
	dir := t.TempDir()
	good := testutil.WritePNG(t, dir, "good.png", 10, 10)
	bad := testutil.WriteCorrupt(t, dir, "bad.jpg")

	prepared, skipped, err := PrepareImages(context.Background(), []string{good, bad, good})
	require.NoError(t, err)
	assert.Len(t, prepared, 1)
	assert.Contains(t, prepared, good)
	require.Len(t, skipped, 1)
	assert.Equal(t, bad, skipped[0].Path)
}

func TestPrepareImages_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := testutil.WritePNG(t, t.TempDir(), "a.png", 10, 10)
	_, _, err := PrepareImages(ctx, []string{path})
	assert.ErrorIs(t, err, context.Canceled)
}
