package testutil

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// WritePNG writes a w×h gradient PNG into dir and returns its path.
func WritePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	return writeImage(t, dir, name, w, h, func(f *os.File, img image.Image) error {
		return png.Encode(f, img)
	})
}

// WriteJPEG writes a w×h gradient JPEG into dir and returns its path.
func WriteJPEG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	return writeImage(t, dir, name, w, h, func(f *os.File, img image.Image) error {
		return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	})
}

// WriteCorrupt writes a file with an image extension but garbage content.
func WriteCorrupt(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("definitely not an image"), 0o644); err != nil {
		t.Fatalf("write corrupt image: %v", err)
	}
	return path
}

func writeImage(t *testing.T, dir, name string, w, h int, encode func(*os.File, image.Image) error) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create image: %v", err)
	}
	defer f.Close()

	if err := encode(f, img); err != nil {
		t.Fatalf("encode image: %v", err)
	}
	return path
}
