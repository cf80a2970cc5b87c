package ico

import (
	"fmt"
	"io"
	"strings"

	"github.com/goopsie/icoTools/pkg/pngheader"
)

// Icon is a parsed container. Image slices alias the parsed buffer.
type Icon struct {
	Header  Header
	Entries []DirEntry
	data    []byte
}

// Parse decodes the header and directory of a container and checks that
// every payload lies inside data.
func Parse(data []byte) (*Icon, error) {
	icon := &Icon{data: data}

	if err := icon.Header.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	dirSize := icon.Header.DirSize()
	if len(data) < dirSize {
		return nil, fmt.Errorf("directory truncated: need %d bytes, got %d", dirSize, len(data))
	}

	icon.Entries = make([]DirEntry, icon.Header.Count)
	for i := range icon.Entries {
		e := &icon.Entries[i]
		e.DecodeFrom(data[HeaderSize+i*EntrySize:])

		if uint64(e.Offset) < uint64(dirSize) {
			return nil, fmt.Errorf("entry %d: offset %d overlaps directory", i, e.Offset)
		}
		if e.End() > uint64(len(data)) {
			return nil, fmt.Errorf("entry %d: data [%d, %d) extends beyond %d bytes", i, e.Offset, e.End(), len(data))
		}
	}

	return icon, nil
}

// ReadAll reads a whole container from r and parses it.
func ReadAll(r io.Reader) (*Icon, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read icon: %w", err)
	}
	return Parse(data)
}

// Len returns the number of images.
func (ic *Icon) Len() int {
	return len(ic.Entries)
}

// Image returns the payload of entry i.
func (ic *Icon) Image(i int) []byte {
	e := ic.Entries[i]
	return ic.data[e.Offset:e.End()]
}

// IsPNG reports whether entry i holds a PNG stream rather than a DIB.
func (ic *Icon) IsPNG(i int) bool {
	return pngheader.HasMagic(ic.Image(i))
}

// String returns a human-readable listing of the directory.
func (ic *Icon) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Icon: %d image(s)", ic.Len())
	for i, e := range ic.Entries {
		kind := "bmp"
		if ic.IsPNG(i) {
			kind = "png"
		}
		fmt.Fprintf(&b, "\n  #%d %dx%d %dbpp planes=%d %s size=%d offset=%d",
			i, e.PixelWidth(), e.PixelHeight(), e.BitsPerPixel, e.Planes, kind, e.Size, e.Offset)
	}
	return b.String()
}
