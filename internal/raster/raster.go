// Package raster is the image surface capability for the capture pipeline:
// decode, crop, compose, and encode operations over in-memory rasters.
package raster

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"go-region-annotator/pkg/geometry"
)

// DecodeDataURL decodes a self-contained encoded image as produced by the
// privileged capture primitive: either a data: URL or bare base64. Falls
// back to webp when the registered decoders reject the payload.
func DecodeDataURL(data string) (image.Image, error) {
	raw, err := DataURLBytes(data)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(raw)
}

// DataURLBytes returns the raw encoded bytes of a data URL or bare base64
// payload without decoding the image itself.
func DataURLBytes(data string) ([]byte, error) {
	payload := data
	if strings.HasPrefix(data, "data:") {
		idx := strings.Index(data, ",")
		if idx < 0 {
			return nil, fmt.Errorf("malformed data URL")
		}
		payload = data[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	return raw, nil
}

// DecodeBytes decodes raw image bytes, trying the registered decoders first
// and webp second.
func DecodeBytes(raw []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(raw)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(raw)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("unsupported image format")
}

// EncodePNGDataURL encodes img as a base64 PNG data URL.
func EncodePNGDataURL(img image.Image) (string, error) {
	raw, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw), nil
}

// EncodePNG encodes img to PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeWebP encodes img to lossy webp at the given quality.
func EncodeWebP(img image.Image, quality float32) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	return buf.Bytes(), nil
}

// NaturalSize returns the pixel dimensions of img.
func NaturalSize(img image.Image) geometry.Size {
	b := img.Bounds()
	return geometry.Size{W: float64(b.Dx()), H: float64(b.Dy())}
}

// Crop extracts the integer pixel rectangle from img.
func Crop(img image.Image, r image.Rectangle) *image.NRGBA {
	return imaging.Crop(img, r)
}

// CropViewportRect crops a viewport-relative rectangle out of a snapshot
// whose natural size may differ from the viewport (device pixel ratio,
// resolution mismatch). The source rectangle is scaled by natural/viewport
// per axis and the result is composited back to rect.W x rect.H.
func CropViewportRect(snapshot image.Image, rect geometry.Rect, viewport geometry.Size) (*image.NRGBA, error) {
	if rect.IsEmpty() {
		return nil, fmt.Errorf("empty crop rectangle")
	}
	natural := NaturalSize(snapshot)
	sx, sy := geometry.ScaleFactors(viewport, natural)

	src := rect.Scale(sx, sy).Intersect(natural)
	if src.IsEmpty() {
		return nil, fmt.Errorf("crop rectangle outside snapshot bounds")
	}

	out := imaging.Crop(snapshot, src.ToImageRect())
	outW := int(rect.W)
	outH := int(rect.H)
	if out.Bounds().Dx() != outW || out.Bounds().Dy() != outH {
		out = imaging.Resize(out, outW, outH, imaging.Lanczos)
	}
	return out, nil
}

// Thumbnail scales img down so its longest edge does not exceed limit.
// Smaller images pass through unchanged.
func Thumbnail(img image.Image, limit int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() <= limit && b.Dy() <= limit {
		return imaging.Clone(img)
	}
	if b.Dx() >= b.Dy() {
		return imaging.Resize(img, limit, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, limit, imaging.Lanczos)
}

var (
	placeholderBG     = color.NRGBA{R: 0x2b, G: 0x2b, B: 0x33, A: 0xff}
	placeholderBorder = color.NRGBA{R: 0x88, G: 0x88, B: 0x99, A: 0xff}
	placeholderText   = color.NRGBA{R: 0xe8, G: 0xe8, B: 0xf0, A: 0xff}
)

// Placeholder synthesizes a w x h raster carrying the given metadata lines.
// Used when no privileged snapshot is available so the pipeline still
// produces an image.
func Placeholder(w, h int, lines []string) (*image.NRGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid placeholder size %dx%d", w, h)
	}
	out := imaging.New(w, h, placeholderBG)

	// 1px border
	for x := 0; x < w; x++ {
		out.Set(x, 0, placeholderBorder)
		out.Set(x, h-1, placeholderBorder)
	}
	for y := 0; y < h; y++ {
		out.Set(0, y, placeholderBorder)
		out.Set(w-1, y, placeholderBorder)
	}

	face := basicfont.Face7x13
	lineHeight := face.Height + 4
	y := face.Height + 6
	for _, line := range lines {
		if y >= h-2 {
			break
		}
		d := font.Drawer{
			Dst:  out,
			Src:  image.NewUniform(placeholderText),
			Face: face,
			Dot:  fixed.P(6, y),
		}
		d.DrawString(line)
		y += lineHeight
	}
	return out, nil
}
