package preset

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writePreset(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "preset.yml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	p := Default()
	if err := p.Validate(); err != nil {
		t.Fatalf("default preset invalid: %v", err)
	}
	if !reflect.DeepEqual(p.Sizes, DefaultSizes) {
		t.Errorf("sizes: got %v, want %v", p.Sizes, DefaultSizes)
	}

	p.Sizes[0] = 999
	if DefaultSizes[0] != 16 {
		t.Error("Default shares the DefaultSizes backing array")
	}
}

func TestLoad(t *testing.T) {
	t.Run("Overlay", func(t *testing.T) {
		path := writePreset(t, `
sizes: [16, 48, 256]
resample: lanczos3
ico:
  when: "pow2(size)"
  combined: false
bundle:
  compression: zstd
  level: 3
`)
		p, err := Load(path)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if !reflect.DeepEqual(p.Sizes, []int{16, 48, 256}) {
			t.Errorf("sizes: got %v", p.Sizes)
		}
		if p.Resample != "lanczos3" {
			t.Errorf("resample: got %q", p.Resample)
		}
		if p.Fit != "stretch" {
			t.Errorf("fit default lost: got %q", p.Fit)
		}
		if p.ICO.Combined {
			t.Error("combined: got true, want false")
		}
		if p.Bundle.Compression != "zstd" || p.Bundle.Level != 3 || !p.Bundle.Enabled {
			t.Errorf("bundle: got %+v", p.Bundle)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		p, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if !reflect.DeepEqual(p, Default()) {
			t.Errorf("got %+v, want defaults", p)
		}
	})

	t.Run("UnknownField", func(t *testing.T) {
		if _, err := Load(writePreset(t, "colour: red\n")); err == nil {
			t.Error("expected error for unknown field")
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		if _, err := Load(writePreset(t, "sizes: [16, 16]\n")); err == nil {
			t.Error("expected error for duplicate size")
		}
	})
}

func TestSaveLoad(t *testing.T) {
	original := Default()
	original.Sizes = []int{24, 72}
	original.ICO.Large = true

	path := filepath.Join(t.TempDir(), "out.yml")
	if err := original.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(loaded, original) {
		t.Errorf("mismatch: got %+v, want %+v", loaded, original)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Preset)
	}{
		{"NoSizes", func(p *Preset) { p.Sizes = nil }},
		{"ZeroSize", func(p *Preset) { p.Sizes = []int{0} }},
		{"HugeSize", func(p *Preset) { p.Sizes = []int{MaxSize + 1} }},
		{"Scaler", func(p *Preset) { p.Resample = "pica" }},
		{"Fit", func(p *Preset) { p.Fit = "cover" }},
		{"PNGCompression", func(p *Preset) { p.PNGCompression = "max" }},
		{"Rule", func(p *Preset) { p.ICO.When = "size <=" }},
		{"RuleVariable", func(p *Preset) { p.ICO.When = "width <= 256" }},
		{"BundleCompression", func(p *Preset) { p.Bundle.Compression = "lzma" }},
		{"BundleLevel", func(p *Preset) { p.Bundle.Level = 30 }},
		{"DeflateLevel15", func(p *Preset) { p.Bundle.Compression = "deflate"; p.Bundle.Level = 15 }},
		{"DeflateLevelLow", func(p *Preset) { p.Bundle.Level = -3 }},
		{"ZstdLevel21", func(p *Preset) { p.Bundle.Compression = "zstd"; p.Bundle.Level = 21 }},
		{"LargeRuleVariable", func(p *Preset) { p.ICO.Large = true; p.ICO.When = "height > 1" }},
		{"Workers", func(p *Preset) { p.Workers = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(p)
			if err := p.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateBundleLevels(t *testing.T) {
	tests := []struct {
		compression string
		level       int
	}{
		{"deflate", -2},
		{"deflate", 0},
		{"deflate", 9},
		{"zstd", 0},
		{"zstd", 20},
		{"store", 42},
	}

	for _, tt := range tests {
		p := Default()
		p.Bundle.Compression = tt.compression
		p.Bundle.Level = tt.level
		if err := p.Validate(); err != nil {
			t.Errorf("%s level %d: unexpected error %v", tt.compression, tt.level, err)
		}
	}
}

func TestICORule(t *testing.T) {
	tests := []struct {
		name     string
		when     string
		large    bool
		expected string
	}{
		{"Default", DefaultRule, false, DefaultRule},
		{"DefaultLarge", DefaultRule, true, LargeRule},
		{"UnsetLarge", "", true, LargeRule},
		{"CustomLarge", "pow2(size)", true, "pow2(size)"},
	}

	for _, tt := range tests {
		p := Default()
		p.ICO.When = tt.when
		p.ICO.Large = tt.large
		if got := p.ICORule(); got != tt.expected {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.expected)
		}
	}

	t.Run("LoadLarge", func(t *testing.T) {
		p, err := Load(writePreset(t, "ico:\n  large: true\n"))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		r, err := CompileRule(p.ICORule())
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		if ok, err := r.Match(512); err != nil || !ok {
			t.Errorf("512 with large preset: got %v (%v), want true", ok, err)
		}
	})
}

func TestRule(t *testing.T) {
	tests := []struct {
		expr     string
		size     int
		expected bool
	}{
		{"", 256, true},
		{"", 512, false},
		{"size <= 256", 16, true},
		{"pow2(size)", 64, true},
		{"pow2(size)", 96, false},
		{"between(size, 32, 128)", 32, true},
		{"between(size, 32, 128)", 192, false},
		{"size != 96 && size <= 256", 96, false},
	}

	for _, tt := range tests {
		r, err := CompileRule(tt.expr)
		if err != nil {
			t.Fatalf("compile %q: %v", tt.expr, err)
		}
		got, err := r.Match(tt.size)
		if err != nil {
			t.Fatalf("match %q: %v", tt.expr, err)
		}
		if got != tt.expected {
			t.Errorf("%q with size %d: expected %v, got %v", tt.expr, tt.size, tt.expected, got)
		}
	}

	t.Run("NonBoolean", func(t *testing.T) {
		r, err := CompileRule("size * 2")
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		if _, err := r.Match(16); err == nil {
			t.Error("expected error for numeric result")
		}
	})

	t.Run("String", func(t *testing.T) {
		r, err := CompileRule("  ")
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		if r.String() != DefaultRule {
			t.Errorf("got %q, want %q", r.String(), DefaultRule)
		}
	})
}
