// Package pngheader reads the fixed-layout start of a PNG stream without decoding pixels.
//
// A PNG file begins with an 8-byte signature followed by the IHDR chunk:
//
//	+0x00  signature   89 50 4E 47 0D 0A 1A 0A
//	+0x08  length      u32 BE (always 13)
//	+0x0C  type        "IHDR"
//	+0x10  width       u32 BE
//	+0x14  height      u32 BE
//	+0x18  bit depth, colour type, compression, filter, interlace
//	+0x1D  crc         u32 BE
package pngheader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Signature is the full 8-byte PNG file signature.
var Signature = [8]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// Magic is the leading part of Signature ("\x89PNG").
var Magic = [4]byte{0x89, 0x50, 0x4E, 0x47}

const (
	widthOffset  = 0x10
	heightOffset = 0x14

	// MinSize is the shortest buffer Dimensions can read.
	MinSize = heightOffset + 4

	// HeaderSize covers the signature and the complete IHDR chunk including its CRC.
	HeaderSize = 8 + 4 + 4 + ihdrLength + 4

	ihdrLength = 13
)

var (
	ErrNoSignature = errors.New("png: missing signature")
	ErrTruncated   = errors.New("png: header truncated")
	ErrMissingIHDR = errors.New("png: first chunk is not IHDR")
)

// HasMagic reports whether data starts with the PNG magic bytes.
func HasMagic(data []byte) bool {
	return len(data) >= len(Magic) && bytes.Equal(data[:len(Magic)], Magic[:])
}

// Dimensions returns the width and height stored at the fixed IHDR offsets.
// Only the magic bytes and buffer length are checked.
func Dimensions(data []byte) (width, height uint32, err error) {
	if !HasMagic(data) {
		return 0, 0, ErrNoSignature
	}
	if len(data) < MinSize {
		return 0, 0, fmt.Errorf("%w: need %d bytes, got %d", ErrTruncated, MinSize, len(data))
	}
	width = binary.BigEndian.Uint32(data[widthOffset : widthOffset+4])
	height = binary.BigEndian.Uint32(data[heightOffset : heightOffset+4])
	return width, height, nil
}

// ColorType is the IHDR colour type field.
type ColorType uint8

const (
	ColorGrayscale      ColorType = 0
	ColorTruecolor      ColorType = 2
	ColorIndexed        ColorType = 3
	ColorGrayscaleAlpha ColorType = 4
	ColorTruecolorAlpha ColorType = 6
)

// String returns the PNG specification name of the colour type.
func (c ColorType) String() string {
	switch c {
	case ColorGrayscale:
		return "grayscale"
	case ColorTruecolor:
		return "truecolor"
	case ColorIndexed:
		return "indexed"
	case ColorGrayscaleAlpha:
		return "grayscale+alpha"
	case ColorTruecolorAlpha:
		return "truecolor+alpha"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// IHDR is the decoded image header chunk.
type IHDR struct {
	Width       uint32
	Height      uint32
	BitDepth    uint8
	ColorType   ColorType
	Compression uint8
	Filter      uint8
	Interlace   uint8
}

// ReadIHDR validates the full signature and decodes the IHDR chunk.
func ReadIHDR(data []byte) (*IHDR, error) {
	if len(data) < len(Signature) || !bytes.Equal(data[:len(Signature)], Signature[:]) {
		return nil, ErrNoSignature
	}
	if len(data) < HeaderSize-4 {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrTruncated, HeaderSize-4, len(data))
	}

	length := binary.BigEndian.Uint32(data[8:12])
	if length != ihdrLength || string(data[12:16]) != "IHDR" {
		return nil, ErrMissingIHDR
	}

	return &IHDR{
		Width:       binary.BigEndian.Uint32(data[widthOffset : widthOffset+4]),
		Height:      binary.BigEndian.Uint32(data[heightOffset : heightOffset+4]),
		BitDepth:    data[0x18],
		ColorType:   ColorType(data[0x19]),
		Compression: data[0x1A],
		Filter:      data[0x1B],
		Interlace:   data[0x1C],
	}, nil
}

// HasAlpha reports whether pixels carry an alpha channel.
func (h *IHDR) HasAlpha() bool {
	return h.ColorType == ColorGrayscaleAlpha || h.ColorType == ColorTruecolorAlpha
}

// String returns a human-readable representation.
func (h *IHDR) String() string {
	interlace := "none"
	if h.Interlace == 1 {
		interlace = "adam7"
	}
	return fmt.Sprintf("PNG: %dx%d, %d-bit %s, interlace=%s",
		h.Width, h.Height, h.BitDepth, h.ColorType, interlace)
}
