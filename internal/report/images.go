package report

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Image recompression parameters.
const (
	MaxImageDim = 1600
	JPEGQuality = 80
)

// PreparedImage is a photo recompressed for embedding.
type PreparedImage struct {
	Path   string
	JPEG   []byte
	Width  int
	Height int
}

// SkippedImage is a photo that could not be prepared.
type SkippedImage struct {
	Path string
	Err  error
}

// PrepareImage decodes the image at path, downscales it so neither side
// exceeds maxDim and re-encodes it as JPEG at quality.
func PrepareImage(path string, maxDim, quality int) (*PreparedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("decode %s: empty image", path)
	}

	dst := image.Image(src)
	if w > maxDim || h > maxDim {
		scale := float64(maxDim) / float64(max(w, h))
		nw, nh := max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
		scaled := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, b, draw.Src, nil)
		dst, w, h = scaled, nw, nh
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}
	return &PreparedImage{Path: path, JPEG: buf.Bytes(), Width: w, Height: h}, nil
}

// PrepareImages prepares every path with the default parameters. Unreadable
// images are returned in skipped instead of failing the batch. Duplicate
// paths are prepared once.
func PrepareImages(ctx context.Context, paths []string) (map[string]*PreparedImage, []SkippedImage, error) {
	prepared := make(map[string]*PreparedImage, len(paths))
	var skipped []SkippedImage
	seen := make(map[string]bool, len(paths))

	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		img, err := PrepareImage(p, MaxImageDim, JPEGQuality)
		if err != nil {
			skipped = append(skipped, SkippedImage{Path: p, Err: err})
			continue
		}
		prepared[p] = img
	}
	return prepared, skipped, nil
}
