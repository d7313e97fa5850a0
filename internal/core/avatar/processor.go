package avatar

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Processor transcodes avatar bytes according to a preset.
type Processor interface {
	// Process returns the transformed image and its content type.
	Process(data []byte, preset Preset) ([]byte, string, error)
}

// ImageProcessor implements Processor using the imaging library.
type ImageProcessor struct{}

// NewProcessor creates a new ImageProcessor instance.
func NewProcessor() *ImageProcessor {
	return &ImageProcessor{}
}

// Process decodes the image, cover-crops it to the preset dimensions and
// re-encodes it. Opaque results become JPEG; anything with transparency is
// encoded as PNG so the alpha channel survives.
func (p *ImageProcessor) Process(data []byte, preset Preset) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty image data", ErrUnsupportedFormat)
	}
	if err := preset.Validate(); err != nil {
		return nil, "", err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") {
			return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return nil, "", fmt.Errorf("%w: failed to decode image: %v", ErrProcessingFailed, err)
	}

	processed := imaging.Fill(img, preset.Width, preset.Height, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if !processed.Opaque() {
		if err := imaging.Encode(&buf, processed, imaging.PNG); err != nil {
			return nil, "", fmt.Errorf("%w: failed to encode PNG: %v", ErrProcessingFailed, err)
		}
		return buf.Bytes(), "image/png", nil
	}

	if err := jpeg.Encode(&buf, processed, &jpeg.Options{Quality: preset.Quality}); err != nil {
		return nil, "", fmt.Errorf("%w: failed to encode JPEG: %v", ErrProcessingFailed, err)
	}

	return buf.Bytes(), "image/jpeg", nil
}
