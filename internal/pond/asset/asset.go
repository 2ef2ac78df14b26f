// Package asset stores fish images and derives their feed thumbnails.
//
// This is the server side of the drawing tool's export path: the tool
// submits a PNG, the pipeline validates and persists it, and the stored
// paths and dimensions go into the new pond object's row.
package asset

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"

	apperrors "github.com/lcroft/pond/internal/platform/errors"
)

const (
	// DefaultMaxBytes bounds an uploaded fish image.
	DefaultMaxBytes = 1 << 20 // 1 MiB
	// maxDimension bounds either side of an uploaded image.
	maxDimension = 1024
	// thumbBound is the bounding box for generated thumbnails.
	thumbBound = 120
)

// Stored describes a persisted fish image.
type Stored struct {
	ImagePath string
	ThumbPath string
	Width     int
	Height    int
}

// Pipeline validates and persists fish images under a root directory.
type Pipeline struct {
	dir      string
	maxBytes int64
}

// NewPipeline creates the asset directory if needed and returns a
// pipeline rooted there.
func NewPipeline(dir string) (*Pipeline, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("asset directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset directory: %w", err)
	}
	return &Pipeline{dir: dir, maxBytes: DefaultMaxBytes}, nil
}

// StorePNG validates the uploaded PNG and writes the original plus a
// thumbnail bounded to 120px. Paths are returned relative to the asset
// root so rows stay portable across deployments.
func (p *Pipeline) StorePNG(objectID string, r io.Reader) (Stored, error) {
	if p == nil {
		return Stored{}, fmt.Errorf("pipeline is not configured")
	}
	objectID = strings.TrimSpace(objectID)
	if objectID == "" {
		return Stored{}, fmt.Errorf("object id is required")
	}

	data, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return Stored{}, apperrors.Wrap(apperrors.CodeAssetInvalidImage, "read image upload", err)
	}
	if int64(len(data)) > p.maxBytes {
		return Stored{}, apperrors.New(apperrors.CodeAssetTooLarge, "image upload exceeds size limit")
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return Stored{}, apperrors.Wrap(apperrors.CodeAssetInvalidImage, "decode png", err)
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 || width > maxDimension || height > maxDimension {
		return Stored{}, apperrors.WithMetadata(
			apperrors.CodeAssetInvalidImage,
			"image dimensions out of range",
			map[string]string{"Width": fmt.Sprint(width), "Height": fmt.Sprint(height)},
		)
	}

	imageName := objectID + ".png"
	thumbName := objectID + "_thumb.png"
	if err := os.WriteFile(filepath.Join(p.dir, imageName), data, 0o644); err != nil {
		return Stored{}, fmt.Errorf("write image: %w", err)
	}

	thumb := resize.Thumbnail(thumbBound, thumbBound, img, resize.Lanczos3)
	if err := p.writeThumb(thumbName, thumb); err != nil {
		return Stored{}, err
	}

	return Stored{
		ImagePath: imageName,
		ThumbPath: thumbName,
		Width:     width,
		Height:    height,
	}, nil
}

func (p *Pipeline) writeThumb(name string, img image.Image) error {
	file, err := os.Create(filepath.Join(p.dir, name))
	if err != nil {
		return fmt.Errorf("create thumbnail: %w", err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	return nil
}

// Dir returns the asset root, for serving files over HTTP.
func (p *Pipeline) Dir() string {
	return p.dir
}
