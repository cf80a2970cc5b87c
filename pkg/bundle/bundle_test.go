package bundle

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"io"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/goopsie/icoTools/pkg/batch"
)

func testResult(t *testing.T) *batch.Result {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	img.Set(0, 0, color.NRGBA{A: 255})

	res, err := batch.Run(context.Background(), batch.Source{Name: "brand.png", Image: img}, batch.Options{
		Sizes:    []int{16, 32, 512},
		Combined: true,
	})
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	return res
}

func readEntries(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	entries := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		entries[f.Name] = body
	}
	return entries
}

func TestWrite(t *testing.T) {
	res := testResult(t)

	for _, m := range []Method{MethodStore, MethodDeflate, MethodZstd} {
		t.Run(string(m), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, res, WithMethod(m)); err != nil {
				t.Fatalf("write: %v", err)
			}

			entries := readEntries(t, buf.Bytes())
			want := map[string][]byte{
				"png/brand-16.png":  res.Artifacts[0].PNG,
				"png/brand-32.png":  res.Artifacts[1].PNG,
				"png/brand-512.png": res.Artifacts[2].PNG,
				"ico/brand-16.ico":  res.Artifacts[0].ICO,
				"ico/brand-32.ico":  res.Artifacts[1].ICO,
				"brand.ico":         res.Combined,
			}
			if len(entries) != len(want) {
				t.Errorf("entry count: got %d, want %d", len(entries), len(want))
			}
			for name, body := range want {
				got, ok := entries[name]
				if !ok {
					t.Errorf("missing %s", name)
					continue
				}
				if !bytes.Equal(got, body) {
					t.Errorf("%s: content mismatch", name)
				}
			}
		})
	}
}

func TestWriteMethodIDs(t *testing.T) {
	res := testResult(t)

	var buf bytes.Buffer
	if err := Write(&buf, res, WithMethod(MethodZstd), WithLevel(3)); err != nil {
		t.Fatalf("write: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, f := range zr.File {
		if f.Method != ZstdMethod {
			t.Errorf("%s: method %d, want %d", f.Name, f.Method, ZstdMethod)
		}
	}
}

func TestWriteDeterministic(t *testing.T) {
	res := testResult(t)

	var first, second bytes.Buffer
	if err := Write(&first, res); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Write(&second, res); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("archives differ between writes")
	}

	var dated bytes.Buffer
	stamp := time.Date(2024, time.May, 4, 12, 0, 0, 0, time.UTC)
	if err := Write(&dated, res, WithModified(stamp)); err != nil {
		t.Fatalf("write: %v", err)
	}
	zr, err := Open(bytes.NewReader(dated.Bytes()), int64(dated.Len()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := zr.File[0].Modified; !got.Equal(stamp) {
		t.Errorf("modified: got %v, want %v", got, stamp)
	}
}

func TestWriteErrors(t *testing.T) {
	res := testResult(t)

	tests := []struct {
		name string
		opts []Option
	}{
		{"UnknownMethod", []Option{WithMethod("lzma")}},
		{"DeflateLevel", []Option{WithMethod(MethodDeflate), WithLevel(12)}},
		{"ZstdLevel", []Option{WithMethod(MethodZstd), WithLevel(99)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, res, tt.opts...); err == nil {
				t.Error("expected error")
			}
			if buf.Len() != 0 {
				t.Errorf("wrote %d bytes on error", buf.Len())
			}
		})
	}
}

func TestWriteDeflateNoCompression(t *testing.T) {
	res := testResult(t)

	var buf bytes.Buffer
	if err := Write(&buf, res, WithMethod(MethodDeflate), WithLevel(0)); err != nil {
		t.Fatalf("write: %v", err)
	}
	zr, err := Open(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, f := range zr.File {
		if f.Method != zip.Deflate {
			t.Errorf("%s: method %d, want deflate", f.Name, f.Method)
		}
		if f.CompressedSize64 < f.UncompressedSize64 {
			t.Errorf("%s: compressed %d < raw %d at level 0", f.Name, f.CompressedSize64, f.UncompressedSize64)
		}
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{"Defaults", nil, false},
		{"DeflateZero", []Option{WithMethod(MethodDeflate), WithLevel(0)}, false},
		{"Deflate15", []Option{WithMethod(MethodDeflate), WithLevel(15)}, true},
		{"Zstd20", []Option{WithMethod(MethodZstd), WithLevel(20)}, false},
		{"Zstd21", []Option{WithMethod(MethodZstd), WithLevel(21)}, true},
		{"Store", []Option{WithMethod(MethodStore), WithLevel(15)}, false},
	}
	for _, tt := range tests {
		if err := Check(tt.opts...); (err != nil) != tt.wantErr {
			t.Errorf("%s: error %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		name     string
		expected Method
		wantErr  bool
	}{
		{"", MethodDeflate, false},
		{"store", MethodStore, false},
		{"ZSTD", MethodZstd, false},
		{"bzip2", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMethod(tt.name)
		if (err != nil) != tt.wantErr || got != tt.expected {
			t.Errorf("ParseMethod(%q): expected %q, got %q (%v)", tt.name, tt.expected, got, err)
		}
	}
}

func TestName(t *testing.T) {
	if got := Name("brand"); got != "brand-icons.zip" {
		t.Errorf("got %q, want brand-icons.zip", got)
	}
}
