package ico

import (
	"errors"
	"fmt"
	"io"

	"github.com/goopsie/icoTools/pkg/pngheader"
)

const (
	// MaxClassicDimension is the largest size the 1-byte entry fields describe exactly.
	MaxClassicDimension = 256

	// MaxLargeDimension is the largest size accepted by WithLargeImages.
	MaxLargeDimension = 0xFFFF
)

var (
	// ErrEmptyInput is returned when there are no images to encode.
	ErrEmptyInput = errors.New("ico: no images to encode")

	// ErrTooManyImages is returned when the count does not fit the header field.
	ErrTooManyImages = fmt.Errorf("ico: more than %d images", MaxImages)
)

// NotPNGError reports an input that is not a PNG stream.
type NotPNGError struct {
	Index  int
	Reason string
}

func (e *NotPNGError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("ico: image %d is not a PNG", e.Index)
	}
	return fmt.Sprintf("ico: image %d is not a PNG: %s", e.Index, e.Reason)
}

// UnsupportedDimensionError reports a PNG whose size the directory cannot describe.
type UnsupportedDimensionError struct {
	Index  int
	Width  uint32
	Height uint32
	Max    uint32
}

func (e *UnsupportedDimensionError) Error() string {
	return fmt.Sprintf("ico: image %d is %dx%d, each side must be 1-%d", e.Index, e.Width, e.Height, e.Max)
}

// Encoder assembles icon containers. The zero value is not usable; use NewEncoder.
type Encoder struct {
	maxDimension uint32
	planes       uint16
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithLargeImages accepts frames up to 65535 pixels per side. Their entry
// fields are written as 0 and readers take the real size from the PNG.
func WithLargeImages() Option {
	return func(e *Encoder) {
		e.maxDimension = MaxLargeDimension
	}
}

// WithPlanes sets the colour planes field. Readers accept 0 or 1.
func WithPlanes(planes uint16) Option {
	return func(e *Encoder) {
		e.planes = planes
	}
}

// NewEncoder creates an encoder restricted to 1-256 pixel frames.
func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{
		maxDimension: MaxClassicDimension,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Directory validates the frames and lays out the container directory.
func (e *Encoder) Directory(images [][]byte) (*Header, []DirEntry, error) {
	if len(images) == 0 {
		return nil, nil, ErrEmptyInput
	}
	if len(images) > MaxImages {
		return nil, nil, ErrTooManyImages
	}

	header := NewHeader(len(images))
	entries := make([]DirEntry, len(images))
	offset := uint64(header.DirSize())

	for i, data := range images {
		width, height, err := pngheader.Dimensions(data)
		if err != nil {
			if errors.Is(err, pngheader.ErrNoSignature) {
				return nil, nil, &NotPNGError{Index: i}
			}
			return nil, nil, &NotPNGError{Index: i, Reason: err.Error()}
		}
		if !e.fits(width) || !e.fits(height) {
			return nil, nil, &UnsupportedDimensionError{Index: i, Width: width, Height: height, Max: e.maxDimension}
		}

		size := uint64(len(data))
		if offset+size > 0xFFFFFFFF {
			return nil, nil, fmt.Errorf("ico: image %d ends past the 4 GiB offset limit", i)
		}

		entries[i] = DirEntry{
			Width:        dimensionToField(width),
			Height:       dimensionToField(height),
			Planes:       e.planes,
			BitsPerPixel: BitsPerPixel,
			Size:         uint32(size),
			Offset:       uint32(offset),
		}
		offset += size
	}

	return header, entries, nil
}

func (e *Encoder) fits(d uint32) bool {
	return d >= 1 && d <= e.maxDimension
}

// Encode returns the container holding images in the given order.
// Nothing is returned unless every image validates.
func (e *Encoder) Encode(images [][]byte) ([]byte, error) {
	header, entries, err := e.Directory(images)
	if err != nil {
		return nil, err
	}

	total := header.DirSize()
	for _, data := range images {
		total += len(data)
	}

	out := make([]byte, total)
	header.EncodeTo(out)
	pos := HeaderSize
	for i := range entries {
		entries[i].EncodeTo(out[pos : pos+EntrySize])
		pos += EntrySize
	}
	for _, data := range images {
		pos += copy(out[pos:], data)
	}

	return out, nil
}

// Write encodes images and writes the container to w.
func (e *Encoder) Write(w io.Writer, images [][]byte) error {
	header, entries, err := e.Directory(images)
	if err != nil {
		return err
	}

	dir := make([]byte, header.DirSize())
	header.EncodeTo(dir)
	for i := range entries {
		entries[i].EncodeTo(dir[HeaderSize+i*EntrySize:])
	}
	if _, err := w.Write(dir); err != nil {
		return fmt.Errorf("write directory: %w", err)
	}

	for i, data := range images {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write image %d: %w", i, err)
		}
	}
	return nil
}

// Encode builds a container from PNG streams with a one-off Encoder.
func Encode(images [][]byte, opts ...Option) ([]byte, error) {
	return NewEncoder(opts...).Encode(images)
}

// Write streams a container built from PNG streams to w.
func Write(w io.Writer, images [][]byte, opts ...Option) error {
	return NewEncoder(opts...).Write(w, images)
}
