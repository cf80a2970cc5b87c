// Package raster decodes source images, scales them to icon sizes and
// re-encodes the result as PNG.
package raster

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Decode reads any registered format (PNG, JPEG, GIF, BMP, WebP).
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// Scaler selects the resampling filter.
type Scaler string

const (
	ScalerCatmullRom     Scaler = "catmullrom"
	ScalerBiLinear       Scaler = "bilinear"
	ScalerApproxBiLinear Scaler = "approxbilinear"
	ScalerNearest        Scaler = "nearest"
	ScalerLanczos3       Scaler = "lanczos3"
	ScalerMitchell       Scaler = "mitchell"

	DefaultScaler = ScalerCatmullRom
)

var interpolators = map[Scaler]draw.Interpolator{
	ScalerCatmullRom:     draw.CatmullRom,
	ScalerBiLinear:       draw.BiLinear,
	ScalerApproxBiLinear: draw.ApproxBiLinear,
	ScalerNearest:        draw.NearestNeighbor,
}

var resizeFuncs = map[Scaler]resize.InterpolationFunction{
	ScalerLanczos3: resize.Lanczos3,
	ScalerMitchell: resize.MitchellNetravali,
}

// ParseScaler maps a filter name onto a Scaler. Empty selects DefaultScaler.
func ParseScaler(name string) (Scaler, error) {
	s := Scaler(strings.ToLower(strings.TrimSpace(name)))
	if s == "" {
		return DefaultScaler, nil
	}
	if _, ok := interpolators[s]; ok {
		return s, nil
	}
	if _, ok := resizeFuncs[s]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unknown scaler %q", name)
}

// Fit controls how the source is placed in a square target.
type Fit string

const (
	// FitStretch draws the source over the whole target, ignoring aspect ratio.
	FitStretch Fit = "stretch"
	// FitContain preserves aspect ratio and centres the source on a transparent canvas.
	FitContain Fit = "contain"
)

// ParseFit maps a name onto a Fit. Empty selects FitStretch.
func ParseFit(name string) (Fit, error) {
	switch f := Fit(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FitStretch, nil
	case FitStretch, FitContain:
		return f, nil
	default:
		return "", fmt.Errorf("unknown fit %q", name)
	}
}

// Resize scales src into a new width x height image.
func Resize(src image.Image, width, height int, s Scaler, fit Fit) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	sb := src.Bounds()
	if sb.Empty() {
		return nil, fmt.Errorf("source image is empty")
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	dr := dst.Bounds()
	if fit == FitContain {
		dr = containRect(sb.Dx(), sb.Dy(), width, height)
	}

	if fn, ok := resizeFuncs[s]; ok {
		scaled := resize.Resize(uint(dr.Dx()), uint(dr.Dy()), src, fn)
		draw.Draw(dst, dr, scaled, scaled.Bounds().Min, draw.Src)
		return dst, nil
	}

	interp, ok := interpolators[s]
	if !ok {
		return nil, fmt.Errorf("unknown scaler %q", s)
	}
	interp.Scale(dst, dr, src, sb, draw.Src, nil)
	return dst, nil
}

// containRect returns the largest centred rectangle inside w x h with the
// source aspect ratio. Each side is at least one pixel.
func containRect(srcW, srcH, w, h int) image.Rectangle {
	dw, dh := w, h
	if srcW*h > srcH*w {
		dh = max(1, srcH*w/srcW)
	} else {
		dw = max(1, srcW*h/srcH)
	}
	x := (w - dw) / 2
	y := (h - dh) / 2
	return image.Rect(x, y, x+dw, y+dh)
}

// ParseCompression maps default|none|speed|best onto png levels.
func ParseCompression(name string) (png.CompressionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return png.DefaultCompression, nil
	case "none":
		return png.NoCompression, nil
	case "speed":
		return png.BestSpeed, nil
	case "best":
		return png.BestCompression, nil
	default:
		return 0, fmt.Errorf("unknown png compression %q", name)
	}
}

// EncodePNG encodes img as a PNG stream.
func EncodePNG(img image.Image, level png.CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
