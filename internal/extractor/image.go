package extractor

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	_ "image/gif"
	_ "image/png"
)

// DefaultScale shrinks frames to a quarter of their linear size before
// extraction, trading a little detection range for a large speedup on the
// extraction side.
const DefaultScale = 0.25

// Downscale resizes an encoded image by the given linear factor and
// re-encodes it as JPEG. A factor >= 1 (or one that would collapse the
// image to zero pixels) returns the input unchanged.
func Downscale(imageData []byte, factor float64) ([]byte, error) {
	if factor >= 1 || factor <= 0 {
		return imageData, nil
	}

	src, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("extractor: decoding frame: %w", err)
	}

	bounds := src.Bounds()
	w := int(float64(bounds.Dx()) * factor)
	h := int(float64(bounds.Dy()) * factor)
	if w < 1 || h < 1 {
		return imageData, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("extractor: encoding frame: %w", err)
	}
	return buf.Bytes(), nil
}
