// Package main provides a command-line tool for generating PNG and ICO icon sets.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goopsie/icoTools/pkg/batch"
	"github.com/goopsie/icoTools/pkg/bundle"
	"github.com/goopsie/icoTools/pkg/ico"
	"github.com/goopsie/icoTools/pkg/pngheader"
	"github.com/goopsie/icoTools/pkg/preset"
	"github.com/goopsie/icoTools/pkg/raster"
)

var (
	mode           string
	inputPath      string
	outputPath     string
	presetPath     string
	sizesFlag      string
	resample       string
	fit            string
	compression    string
	largeImages    bool
	makeZip        bool
	forceOverwrite bool
	verbose        bool
)

func init() {
	flag.StringVar(&mode, "mode", "generate", "Operation mode: generate, pack, info")
	flag.StringVar(&inputPath, "input", "", "Source image for generate mode (PNG, JPEG, GIF, BMP, WebP)")
	flag.StringVar(&outputPath, "output", "", "Output directory (generate) or .ico file (pack)")
	flag.StringVar(&presetPath, "preset", "", "YAML preset file")
	flag.StringVar(&sizesFlag, "sizes", "", "Comma-separated sizes, overrides the preset (e.g. 16,32,48)")
	flag.StringVar(&resample, "resample", "", "Resampling filter: catmullrom, bilinear, approxbilinear, nearest, lanczos3, mitchell")
	flag.StringVar(&fit, "fit", "", "Placement in the square target: stretch, contain")
	flag.StringVar(&compression, "compression", "", "ZIP entry compression: store, deflate, zstd")
	flag.BoolVar(&largeImages, "large", false, "Allow icon frames larger than 256 pixels")
	flag.BoolVar(&makeZip, "zip", false, "Also write <name>-icons.zip")
	flag.BoolVar(&forceOverwrite, "force", false, "Allow non-empty output directory")
	flag.BoolVar(&verbose, "v", false, "Log every generated file")
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := validateFlags(); err != nil {
		flag.Usage()
		return err
	}

	switch mode {
	case "generate":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return runGenerate(ctx)
	case "pack":
		return runPack(flag.Args())
	case "info":
		return runInfo(flag.Args())
	default:
		return fmt.Errorf("unknown mode: %s", mode)
	}
}

func validateFlags() error {
	switch mode {
	case "generate":
		if inputPath == "" {
			return fmt.Errorf("generate mode requires -input")
		}
		if outputPath == "" {
			return fmt.Errorf("generate mode requires -output")
		}
	case "pack":
		if outputPath == "" {
			return fmt.Errorf("pack mode requires -output")
		}
		if flag.NArg() == 0 {
			return fmt.Errorf("pack mode requires at least one PNG file argument")
		}
	case "info":
		if flag.NArg() == 0 {
			return fmt.Errorf("info mode requires at least one .ico file argument")
		}
	default:
		return fmt.Errorf("mode must be 'generate', 'pack' or 'info'")
	}
	return nil
}

// loadPreset reads the preset file and applies command-line overrides.
func loadPreset() (*preset.Preset, error) {
	p := preset.Default()
	if presetPath != "" {
		loaded, err := preset.Load(presetPath)
		if err != nil {
			return nil, err
		}
		p = loaded
	}

	if sizesFlag != "" {
		sizes, err := parseSizes(sizesFlag)
		if err != nil {
			return nil, err
		}
		p.Sizes = sizes
	}
	if resample != "" {
		p.Resample = resample
	}
	if fit != "" {
		p.Fit = fit
	}
	if compression != "" {
		p.Bundle.Compression = compression
	}
	if largeImages {
		p.ICO.Large = true
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return p, nil
}

func parseSizes(s string) ([]int, error) {
	var sizes []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid size '%s': %w", part, err)
		}
		sizes = append(sizes, n)
	}
	if len(sizes) == 0 {
		return nil, fmt.Errorf("no sizes in '%s'", s)
	}
	return sizes, nil
}

func prepareOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if !forceOverwrite {
		empty, err := isDirEmpty(dir)
		if err != nil {
			return fmt.Errorf("check output directory: %w", err)
		}
		if !empty {
			return fmt.Errorf("output directory is not empty (use -force to override)")
		}
	}

	return nil
}

func isDirEmpty(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdir(1)
	return err == io.EOF, nil
}

func runGenerate(ctx context.Context) error {
	p, err := loadPreset()
	if err != nil {
		return err
	}
	opts, err := batch.FromPreset(p)
	if err != nil {
		return err
	}
	if verbose {
		opts.Logger = log.New(os.Stdout, "", 0)
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	img, format, err := raster.Decode(f)
	f.Close()
	if err != nil {
		return err
	}
	b := img.Bounds()
	fmt.Printf("Source loaded: %s %dx%d\n", format, b.Dx(), b.Dy())

	var bundleOpts []bundle.Option
	if makeZip || (presetPath != "" && p.Bundle.Enabled) {
		if bundleOpts, err = bundleOptions(p); err != nil {
			return err
		}
	}

	if err := prepareOutputDir(outputPath); err != nil {
		return err
	}

	fmt.Printf("Generating %d sizes...\n", len(opts.Sizes))
	res, err := batch.Run(ctx, batch.Source{Name: filepath.Base(inputPath), Image: img}, opts)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	for _, f := range res.Failures {
		fmt.Printf("Error creating %v\n", &f)
	}

	if err := res.WriteDir(outputPath); err != nil {
		return err
	}

	if bundleOpts != nil {
		if err := writeBundle(res, bundleOpts); err != nil {
			return err
		}
	}

	icons := 0
	for _, a := range res.Artifacts {
		if a.HasICO() {
			icons++
		}
	}
	fmt.Printf("Generation complete: %d PNG, %d ICO, %d failed. Files written to %s\n",
		len(res.Artifacts), icons, len(res.Failures), outputPath)
	return nil
}

// bundleOptions resolves the preset's ZIP settings so a bad method or level
// fails before anything is written.
func bundleOptions(p *preset.Preset) ([]bundle.Option, error) {
	method, err := bundle.ParseMethod(p.Bundle.Compression)
	if err != nil {
		return nil, err
	}
	opts := []bundle.Option{bundle.WithMethod(method), bundle.WithLevel(p.Bundle.Level)}
	if err := bundle.Check(opts...); err != nil {
		return nil, fmt.Errorf("bundle settings: %w", err)
	}
	return opts, nil
}

func writeBundle(res *batch.Result, opts []bundle.Option) error {
	zipPath := filepath.Join(outputPath, bundle.Name(res.BaseName))
	f, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}

	err = bundle.Write(f, res, opts...)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(zipPath)
		return fmt.Errorf("write bundle: %w", err)
	}
	fmt.Printf("Bundle written to %s\n", zipPath)
	return nil
}

func runPack(paths []string) error {
	images := make([][]byte, len(paths))
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		images[i] = data
	}

	var opts []ico.Option
	if largeImages {
		opts = append(opts, ico.WithLargeImages())
	}
	data, err := ico.Encode(images, opts...)
	if err != nil {
		return fmt.Errorf("pack: %w", err)
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("write icon: %w", err)
	}
	fmt.Printf("Packed %d images into %s (%d bytes)\n", len(images), outputPath, len(data))
	return nil
}

func runInfo(paths []string) error {
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		icon, err := ico.ReadAll(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		fmt.Printf("%s\n%s\n", path, icon)
		for i := 0; i < icon.Len(); i++ {
			if !icon.IsPNG(i) {
				continue
			}
			h, err := pngheader.ReadIHDR(icon.Image(i))
			if err != nil {
				fmt.Printf("  #%d %v\n", i, err)
				continue
			}
			fmt.Printf("  #%d %s\n", i, h)
		}
	}
	return nil
}
