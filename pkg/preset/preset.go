// Package preset loads icon generation settings from YAML files.
package preset

import (
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/goopsie/icoTools/pkg/raster"
)

// DefaultSizes are the square sizes generated when a preset names none.
var DefaultSizes = []int{16, 32, 64, 96, 128, 192, 256, 512}

// MaxSize bounds the requested icon side length.
const MaxSize = 4096

// Preset is the on-disk generation configuration.
type Preset struct {
	Sizes          []int  `yaml:"sizes"`
	Resample       string `yaml:"resample"`
	Fit            string `yaml:"fit"`
	PNGCompression string `yaml:"png_compression"`
	ICO            ICO    `yaml:"ico"`
	Bundle         Bundle `yaml:"bundle"`
	Workers        int    `yaml:"workers"` // 0 = one per CPU
}

// Compression level bounds per bundle method.
const (
	MinDeflateLevel = -2 // huffman only
	MaxDeflateLevel = 9
	MinZstdLevel    = 0
	MaxZstdLevel    = 20
)

// ICO controls which sizes get an icon container and how it is built.
type ICO struct {
	When     string `yaml:"when"`     // govaluate expression over `size`
	Large    bool   `yaml:"large"`    // accept frames above 256 pixels
	Combined bool   `yaml:"combined"` // also emit one multi-frame icon
}

// Bundle controls ZIP packaging.
type Bundle struct {
	Enabled     bool   `yaml:"enabled"`
	Compression string `yaml:"compression"` // store|deflate|zstd
	Level       int    `yaml:"level"`
}

// Default returns the built-in preset.
func Default() *Preset {
	return &Preset{
		Sizes:          append([]int(nil), DefaultSizes...),
		Resample:       string(raster.DefaultScaler),
		Fit:            string(raster.FitStretch),
		PNGCompression: "default",
		ICO: ICO{
			When:     DefaultRule,
			Combined: true,
		},
		Bundle: Bundle{
			Enabled:     true,
			Compression: "deflate",
			Level:       6,
		},
	}
}

// Load reads a preset file over the defaults. A missing file yields the defaults.
func Load(path string) (*Preset, error) {
	p := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Preset file '%s' not found. Using defaults.", path)
			return p, nil
		}
		return nil, fmt.Errorf("read preset %s: %w", path, err)
	}

	if err := yaml.UnmarshalStrict(data, p); err != nil {
		return nil, fmt.Errorf("parse preset %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validate preset %s: %w", path, err)
	}
	return p, nil
}

// Save writes the preset as YAML.
func (p *Preset) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal preset: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write preset %s: %w", path, err)
	}
	return nil
}

// ICORule returns the selection expression in effect. With large frames
// enabled an unset or default rule selects every size.
func (p *Preset) ICORule() string {
	when := strings.TrimSpace(p.ICO.When)
	if p.ICO.Large && (when == "" || when == DefaultRule) {
		return LargeRule
	}
	return when
}

// Validate checks every field and compiles the ICO rule.
func (p *Preset) Validate() error {
	if len(p.Sizes) == 0 {
		return fmt.Errorf("no sizes configured")
	}
	seen := make(map[int]bool, len(p.Sizes))
	for _, s := range p.Sizes {
		if s < 1 || s > MaxSize {
			return fmt.Errorf("size %d out of range 1-%d", s, MaxSize)
		}
		if seen[s] {
			return fmt.Errorf("duplicate size %d", s)
		}
		seen[s] = true
	}

	if _, err := raster.ParseScaler(p.Resample); err != nil {
		return err
	}
	if _, err := raster.ParseFit(p.Fit); err != nil {
		return err
	}
	if _, err := raster.ParseCompression(p.PNGCompression); err != nil {
		return err
	}
	if _, err := CompileRule(p.ICORule()); err != nil {
		return err
	}

	lo, hi := 0, 0
	switch strings.ToLower(strings.TrimSpace(p.Bundle.Compression)) {
	case "store":
		lo, hi = p.Bundle.Level, p.Bundle.Level
	case "", "deflate":
		lo, hi = MinDeflateLevel, MaxDeflateLevel
	case "zstd":
		lo, hi = MinZstdLevel, MaxZstdLevel
	default:
		return fmt.Errorf("unknown bundle compression %q", p.Bundle.Compression)
	}
	if p.Bundle.Level < lo || p.Bundle.Level > hi {
		return fmt.Errorf("bundle level %d out of range %d-%d for %s", p.Bundle.Level, lo, hi, p.Bundle.Compression)
	}
	if p.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	return nil
}
