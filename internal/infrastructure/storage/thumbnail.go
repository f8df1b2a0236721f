package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/disintegration/imaging"
)

// ThumbnailProcessor validates an uploaded thumbnail and re-encodes it as a
// PNG that fits in a MaxSide x MaxSide box.
type ThumbnailProcessor struct {
	MaxSide int
	MaxSize int64 // bytes
}

func NewThumbnailProcessor(maxSide int) *ThumbnailProcessor {
	if maxSide <= 0 {
		maxSide = 512
	}
	return &ThumbnailProcessor{MaxSide: maxSide, MaxSize: 10 * 1024 * 1024}
}

// Normalize returns PNG bytes. Images already inside the box are only re-encoded.
func (p *ThumbnailProcessor) Normalize(data []byte) ([]byte, error) {
	if int64(len(data)) > p.MaxSize {
		return nil, fmt.Errorf("thumbnail exceeds %dMB", p.MaxSize/(1024*1024))
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("thumbnail is not an image: %w", err)
	}
	switch format {
	case "png", "jpeg", "gif":
	default:
		return nil, fmt.Errorf("thumbnail format %s not allowed", format)
	}

	b := img.Bounds()
	if b.Dx() > p.MaxSide || b.Dy() > p.MaxSide {
		img = imaging.Fit(img, p.MaxSide, p.MaxSide, imaging.Lanczos)
	}

	out := new(bytes.Buffer)
	if err := png.Encode(out, img); err != nil {
		return nil, fmt.Errorf("cannot encode thumbnail: %w", err)
	}
	return out.Bytes(), nil
}
