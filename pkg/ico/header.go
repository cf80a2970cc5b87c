// Package ico builds and parses Windows icon containers whose frames are PNG streams.
package ico

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the fixed binary size of the ICONDIR header.
	HeaderSize = 6 // 2 + 2 + 2 bytes

	// EntrySize is the fixed binary size of one ICONDIRENTRY.
	EntrySize = 16

	// TypeIcon identifies an icon resource; 2 would be a cursor.
	TypeIcon = 1

	// BitsPerPixel is written for every entry; PNG frames carry full alpha.
	BitsPerPixel = 32

	// MaxImages is the largest count the 16-bit header field can hold.
	MaxImages = 0xFFFF
)

const (
	// MIMEType is the media type of an encoded container.
	MIMEType = "image/x-icon"

	// Extension is the conventional file extension.
	Extension = ".ico"
)

// Header is the ICONDIR record at the start of every container.
type Header struct {
	Reserved uint16
	Type     uint16
	Count    uint16
}

// Validate requires reserved 0, the icon type and at least one image.
func (h *Header) Validate() error {
	if h.Reserved != 0 {
		return fmt.Errorf("invalid reserved field: expected 0, got %d", h.Reserved)
	}
	if h.Type != TypeIcon {
		return fmt.Errorf("invalid type: expected %d, got %d", TypeIcon, h.Type)
	}
	if h.Count == 0 {
		return fmt.Errorf("image count is zero")
	}
	return nil
}

// MarshalBinary returns the 6-byte ICONDIR.
func (h *Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	h.EncodeTo(buf)
	return buf, nil
}

// EncodeTo packs reserved, type and count little-endian into buf[:HeaderSize].
func (h *Header) EncodeTo(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], h.Reserved)
	binary.LittleEndian.PutUint16(buf[2:4], h.Type)
	binary.LittleEndian.PutUint16(buf[4:6], h.Count)
}

// UnmarshalBinary reads an ICONDIR and rejects anything Validate refuses.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("header data too short: need %d, got %d", HeaderSize, len(data))
	}
	h.DecodeFrom(data)
	return h.Validate()
}

// DecodeFrom unpacks the three fields from data[:HeaderSize] as-is.
func (h *Header) DecodeFrom(data []byte) {
	h.Reserved = binary.LittleEndian.Uint16(data[0:2])
	h.Type = binary.LittleEndian.Uint16(data[2:4])
	h.Count = binary.LittleEndian.Uint16(data[4:6])
}

// DirSize returns the combined size of the header and its directory.
func (h *Header) DirSize() int {
	return HeaderSize + EntrySize*int(h.Count)
}

// NewHeader creates an icon header for count images.
func NewHeader(count int) *Header {
	return &Header{
		Type:  TypeIcon,
		Count: uint16(count),
	}
}

// DirEntry is one ICONDIRENTRY describing an embedded image.
type DirEntry struct {
	Width        uint8 // 0 means 256 (or larger, see WithLargeImages)
	Height       uint8
	ColorCount   uint8 // 0 for true-colour images
	Reserved     uint8
	Planes       uint16
	BitsPerPixel uint16
	Size         uint32 // Payload length
	Offset       uint32 // Payload position from the start of the container
}

// MarshalBinary returns the 16-byte ICONDIRENTRY.
func (e *DirEntry) MarshalBinary() ([]byte, error) {
	buf := make([]byte, EntrySize)
	e.EncodeTo(buf)
	return buf, nil
}

// EncodeTo packs the entry into buf[:EntrySize]; multi-byte fields are little-endian.
func (e *DirEntry) EncodeTo(buf []byte) {
	buf[0] = e.Width
	buf[1] = e.Height
	buf[2] = e.ColorCount
	buf[3] = e.Reserved
	binary.LittleEndian.PutUint16(buf[4:6], e.Planes)
	binary.LittleEndian.PutUint16(buf[6:8], e.BitsPerPixel)
	binary.LittleEndian.PutUint32(buf[8:12], e.Size)
	binary.LittleEndian.PutUint32(buf[12:16], e.Offset)
}

// UnmarshalBinary reads one ICONDIRENTRY. Field values are not checked.
func (e *DirEntry) UnmarshalBinary(data []byte) error {
	if len(data) < EntrySize {
		return fmt.Errorf("entry data too short: need %d, got %d", EntrySize, len(data))
	}
	e.DecodeFrom(data)
	return nil
}

// DecodeFrom unpacks data[:EntrySize] into the entry.
func (e *DirEntry) DecodeFrom(data []byte) {
	e.Width = data[0]
	e.Height = data[1]
	e.ColorCount = data[2]
	e.Reserved = data[3]
	e.Planes = binary.LittleEndian.Uint16(data[4:6])
	e.BitsPerPixel = binary.LittleEndian.Uint16(data[6:8])
	e.Size = binary.LittleEndian.Uint32(data[8:12])
	e.Offset = binary.LittleEndian.Uint32(data[12:16])
}

// PixelWidth returns the width the entry field stands for.
func (e *DirEntry) PixelWidth() int {
	return fieldToDimension(e.Width)
}

// PixelHeight returns the height the entry field stands for.
func (e *DirEntry) PixelHeight() int {
	return fieldToDimension(e.Height)
}

// End returns the offset one past the entry's payload.
func (e *DirEntry) End() uint64 {
	return uint64(e.Offset) + uint64(e.Size)
}

func fieldToDimension(b uint8) int {
	if b == 0 {
		return 256
	}
	return int(b)
}

// dimensionToField maps a pixel dimension onto the 1-byte field.
// Callers must have range-checked d; anything above 255 becomes 0.
func dimensionToField(d uint32) uint8 {
	if d > 255 {
		return 0
	}
	return uint8(d)
}
