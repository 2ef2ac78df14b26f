package asset

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/lcroft/pond/internal/platform/errors"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestStorePNG(t *testing.T) {
	t.Parallel()

	pipeline, err := NewPipeline(t.TempDir())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	stored, err := pipeline.StorePNG("fish-1", bytes.NewReader(encodePNG(t, 300, 200)))
	if err != nil {
		t.Fatalf("store png: %v", err)
	}
	if stored.Width != 300 || stored.Height != 200 {
		t.Errorf("dimensions = %dx%d, want 300x200", stored.Width, stored.Height)
	}

	for _, name := range []string{stored.ImagePath, stored.ThumbPath} {
		if _, err := os.Stat(filepath.Join(pipeline.Dir(), name)); err != nil {
			t.Errorf("stored file %s missing: %v", name, err)
		}
	}

	// The thumbnail fits inside the 120px bounding box.
	thumbFile, err := os.Open(filepath.Join(pipeline.Dir(), stored.ThumbPath))
	if err != nil {
		t.Fatalf("open thumbnail: %v", err)
	}
	defer thumbFile.Close()
	thumb, err := png.Decode(thumbFile)
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if thumb.Bounds().Dx() > 120 || thumb.Bounds().Dy() > 120 {
		t.Errorf("thumbnail = %dx%d, want both sides <= 120", thumb.Bounds().Dx(), thumb.Bounds().Dy())
	}
}

func TestStorePNGRejectsNonPNG(t *testing.T) {
	t.Parallel()

	pipeline, err := NewPipeline(t.TempDir())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	_, err = pipeline.StorePNG("fish-1", strings.NewReader("definitely not a png"))
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeAssetInvalidImage {
		t.Fatalf("err = %v, want CodeAssetInvalidImage", err)
	}
}

func TestStorePNGRejectsOversizedDimensions(t *testing.T) {
	t.Parallel()

	pipeline, err := NewPipeline(t.TempDir())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	_, err = pipeline.StorePNG("fish-1", bytes.NewReader(encodePNG(t, 1100, 10)))
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeAssetInvalidImage {
		t.Fatalf("err = %v, want CodeAssetInvalidImage", err)
	}
}
