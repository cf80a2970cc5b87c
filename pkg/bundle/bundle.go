// Package bundle packages a batch result as a ZIP archive.
//
// Layout:
//
//	png/<base>-<size>.png
//	ico/<base>-<size>.ico
//	<base>.ico            (when a combined icon was built)
package bundle

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/DataDog/zstd"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	kzstd "github.com/klauspost/compress/zstd"

	"github.com/goopsie/icoTools/pkg/batch"
)

// ZstdMethod is the ZIP compression method id for Zstandard (APPNOTE 6.3.7).
const ZstdMethod uint16 = 93

const (
	// DefaultDeflateLevel matches the deflate default of most ZIP tools.
	DefaultDeflateLevel = flate.DefaultCompression

	// DefaultZstdLevel is the compression level for zstd entries.
	DefaultZstdLevel = zstd.DefaultCompression

	// MIMEType is the media type of a bundle.
	MIMEType = "application/zip"
)

// Method selects how entries are compressed.
type Method string

const (
	MethodStore   Method = "store"
	MethodDeflate Method = "deflate"
	MethodZstd    Method = "zstd"
)

// ParseMethod maps a name onto a Method. Empty selects deflate.
func ParseMethod(name string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(name))); m {
	case "":
		return MethodDeflate, nil
	case MethodStore, MethodDeflate, MethodZstd:
		return m, nil
	default:
		return "", fmt.Errorf("unknown bundle compression %q", name)
	}
}

// Name returns the archive file name for a base name.
func Name(base string) string {
	return base + "-icons.zip"
}

type config struct {
	method   Method
	level    int
	levelSet bool
	modified time.Time
}

// Option configures Write.
type Option func(*config)

// WithMethod sets the entry compression method.
func WithMethod(m Method) Option {
	return func(c *config) {
		c.method = m
	}
}

// WithLevel sets the compression level. Without it the method default is used;
// WithLevel(0) selects deflate's no-compression level.
func WithLevel(level int) Option {
	return func(c *config) {
		c.level = level
		c.levelSet = true
	}
}

// WithModified sets the timestamp stored on every entry.
func WithModified(t time.Time) Option {
	return func(c *config) {
		c.modified = t
	}
}

// DefaultModified is the entry timestamp used unless WithModified is given.
// A fixed time keeps archives byte-identical across runs.
var DefaultModified = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

func newConfig(opts []Option) *config {
	cfg := &config{
		method:   MethodDeflate,
		modified: DefaultModified,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if !cfg.levelSet {
		switch cfg.method {
		case MethodDeflate:
			cfg.level = DefaultDeflateLevel
		case MethodZstd:
			cfg.level = DefaultZstdLevel
		}
	}
	return cfg
}

// Check reports whether opts name a known method and a level it accepts.
// Write performs the same check before producing any output.
func Check(opts ...Option) error {
	_, err := newConfig(opts).zipMethod()
	return err
}

// Write packages res as a ZIP archive into w.
func Write(w io.Writer, res *batch.Result, opts ...Option) error {
	cfg := newConfig(opts)

	method, err := cfg.zipMethod()
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(ZstdMethod, zstdCompressor(cfg.level))
	zw.RegisterCompressor(zip.Deflate, deflateCompressor(cfg.level))

	add := func(name string, data []byte) error {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   method,
			Modified: cfg.modified,
		})
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		return nil
	}

	for _, a := range res.Artifacts {
		if err := add(a.PNGName, a.PNG); err != nil {
			return err
		}
	}
	for _, a := range res.Artifacts {
		if !a.HasICO() {
			continue
		}
		if err := add(a.ICOName, a.ICO); err != nil {
			return err
		}
	}
	if res.Combined != nil {
		if err := add(res.CombinedName, res.Combined); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

// zipMethod checks the level for the method and returns the ZIP method id.
func (c *config) zipMethod() (uint16, error) {
	switch c.method {
	case MethodStore:
		return zip.Store, nil
	case MethodDeflate:
		if c.level < flate.HuffmanOnly || c.level > flate.BestCompression {
			return 0, fmt.Errorf("deflate level %d out of range %d-%d", c.level, flate.HuffmanOnly, flate.BestCompression)
		}
		return zip.Deflate, nil
	case MethodZstd:
		if c.level < 0 || c.level > zstd.BestCompression {
			return 0, fmt.Errorf("zstd level %d out of range 0-%d", c.level, zstd.BestCompression)
		}
		return ZstdMethod, nil
	default:
		return 0, fmt.Errorf("unknown bundle compression %q", c.method)
	}
}

func deflateCompressor(level int) zip.Compressor {
	return func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	}
}

func zstdCompressor(level int) zip.Compressor {
	return func(out io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriterLevel(out, level), nil
	}
}

// Open reads a bundle, including entries compressed with zstd.
// Zstd entries are decoded with the pure Go decoder so reading needs no cgo.
func Open(r io.ReaderAt, size int64) (*zip.Reader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	zr.RegisterDecompressor(ZstdMethod, kzstd.ZipDecompressor(kzstd.WithDecoderConcurrency(1)))
	return zr, nil
}
