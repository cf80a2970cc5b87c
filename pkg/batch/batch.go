// Package batch turns one source image into a set of PNG and ICO files.
//
// Every requested size runs as its own task: resize, PNG encode and, when the
// size is selected, ICO encode. Tasks run in parallel but results are
// collected in request order. A failing size is recorded and the remaining
// sizes continue.
package batch

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/goopsie/icoTools/pkg/ico"
	"github.com/goopsie/icoTools/pkg/preset"
	"github.com/goopsie/icoTools/pkg/raster"
)

// Stage names the pipeline step a failure happened in.
type Stage string

const (
	StageResize   Stage = "resize"
	StagePNG      Stage = "png"
	StageSelect   Stage = "select"
	StageICO      Stage = "ico"
	StageCombined Stage = "combined"
)

const (
	PNGDir = "png"
	ICODir = "ico"

	// DefaultBaseName is used when the source has no usable file name.
	DefaultBaseName = "image"
)

// Source is the decoded input image and the file name it came from.
type Source struct {
	Name  string
	Image image.Image
}

// Options configures a run.
type Options struct {
	Sizes    []int
	Scaler   raster.Scaler
	Fit      raster.Fit
	PNGLevel png.CompressionLevel

	// EmitICO selects the sizes that get an icon container. Nil selects all.
	EmitICO func(size int) (bool, error)
	// ICOOptions are passed to every ico.Encode call.
	ICOOptions []ico.Option
	// Combined also builds one multi-frame icon from every emitted size.
	Combined bool

	Workers int         // 0 = runtime.NumCPU()
	Logger  *log.Logger // nil = silent
}

// FromPreset builds Options from a validated preset.
func FromPreset(p *preset.Preset) (Options, error) {
	scaler, err := raster.ParseScaler(p.Resample)
	if err != nil {
		return Options{}, err
	}
	fit, err := raster.ParseFit(p.Fit)
	if err != nil {
		return Options{}, err
	}
	level, err := raster.ParseCompression(p.PNGCompression)
	if err != nil {
		return Options{}, err
	}
	rule, err := preset.CompileRule(p.ICORule())
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		Sizes:    append([]int(nil), p.Sizes...),
		Scaler:   scaler,
		Fit:      fit,
		PNGLevel: level,
		EmitICO:  rule.Match,
		Combined: p.ICO.Combined,
		Workers:  p.Workers,
	}
	if p.ICO.Large {
		opts.ICOOptions = append(opts.ICOOptions, ico.WithLargeImages())
	}
	return opts, nil
}

// Artifact holds the outputs generated for one size.
type Artifact struct {
	Size    int
	PNGName string
	PNG     []byte
	ICOName string // empty when no icon was produced
	ICO     []byte
}

// HasICO reports whether an icon container was produced for this size.
func (a *Artifact) HasICO() bool {
	return a.ICO != nil
}

// Failure records a size that could not be fully processed.
type Failure struct {
	Size  int
	Stage Stage
	Err   error
}

func (f *Failure) Error() string {
	if f.Stage == StageCombined {
		return fmt.Sprintf("combined icon: %v", f.Err)
	}
	return fmt.Sprintf("size %d: %s: %v", f.Size, f.Stage, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Result is everything a run produced. Each run owns its own Result.
type Result struct {
	BaseName     string
	Artifacts    []Artifact
	Failures     []Failure
	CombinedName string
	Combined     []byte
}

// BaseName strips the directory and extension from a file name.
func BaseName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		return DefaultBaseName
	}
	return base
}

// PNGName returns the bundle-relative PNG path for a size.
func PNGName(base string, size int) string {
	return fmt.Sprintf("%s/%s-%d.png", PNGDir, base, size)
}

// ICOName returns the bundle-relative ICO path for a size.
func ICOName(base string, size int) string {
	return fmt.Sprintf("%s/%s-%d%s", ICODir, base, size, ico.Extension)
}

type sizeResult struct {
	artifact *Artifact
	failure  *Failure
	err      error
}

// Run processes every size in opts. Cancelling ctx stops the run between
// stages and returns ctx.Err() with no result.
func Run(ctx context.Context, src Source, opts Options) (*Result, error) {
	if src.Image == nil {
		return nil, fmt.Errorf("source image is nil")
	}
	if len(opts.Sizes) == 0 {
		return nil, fmt.Errorf("no sizes requested")
	}
	if opts.Scaler == "" {
		opts.Scaler = raster.DefaultScaler
	}
	if opts.Fit == "" {
		opts.Fit = raster.FitStretch
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	res := &Result{BaseName: BaseName(src.Name)}

	futureResults := make(chan chan sizeResult, workers)
	go func() {
		defer close(futureResults)
		for _, size := range opts.Sizes {
			resultChan := make(chan sizeResult, 1)
			select {
			case futureResults <- resultChan:
			case <-ctx.Done():
				return
			}
			go func(size int, ch chan sizeResult) {
				ch <- processSize(ctx, src.Image, size, res.BaseName, &opts)
			}(size, resultChan)
		}
	}()

	var cancelled error
	for ch := range futureResults {
		r := <-ch
		switch {
		case r.err != nil:
			cancelled = r.err
		case r.failure != nil:
			logger.Printf("Error creating size %d: %v", r.failure.Size, r.failure.Err)
			res.Failures = append(res.Failures, *r.failure)
		}
		if r.artifact != nil {
			logger.Printf("Generated %s (%d bytes)", r.artifact.PNGName, len(r.artifact.PNG))
			if r.artifact.HasICO() {
				logger.Printf("Generated %s (%d bytes)", r.artifact.ICOName, len(r.artifact.ICO))
			}
			res.Artifacts = append(res.Artifacts, *r.artifact)
		}
	}
	if cancelled == nil {
		cancelled = ctx.Err()
	}
	if cancelled != nil {
		return nil, cancelled
	}

	if opts.Combined {
		if err := res.buildCombined(opts.ICOOptions); err != nil {
			logger.Printf("Error creating combined icon: %v", err)
			res.Failures = append(res.Failures, Failure{Stage: StageCombined, Err: err})
		}
	}

	return res, nil
}

func processSize(ctx context.Context, img image.Image, size int, base string, opts *Options) sizeResult {
	if err := ctx.Err(); err != nil {
		return sizeResult{err: err}
	}
	scaled, err := raster.Resize(img, size, size, opts.Scaler, opts.Fit)
	if err != nil {
		return sizeResult{failure: &Failure{Size: size, Stage: StageResize, Err: err}}
	}

	if err := ctx.Err(); err != nil {
		return sizeResult{err: err}
	}
	pngData, err := raster.EncodePNG(scaled, opts.PNGLevel)
	if err != nil {
		return sizeResult{failure: &Failure{Size: size, Stage: StagePNG, Err: err}}
	}
	artifact := &Artifact{
		Size:    size,
		PNGName: PNGName(base, size),
		PNG:     pngData,
	}

	if err := ctx.Err(); err != nil {
		return sizeResult{err: err}
	}
	if opts.EmitICO != nil {
		emit, err := opts.EmitICO(size)
		if err != nil {
			return sizeResult{artifact: artifact, failure: &Failure{Size: size, Stage: StageSelect, Err: err}}
		}
		if !emit {
			return sizeResult{artifact: artifact}
		}
	}

	icoData, err := ico.Encode([][]byte{pngData}, opts.ICOOptions...)
	if err != nil {
		return sizeResult{artifact: artifact, failure: &Failure{Size: size, Stage: StageICO, Err: err}}
	}
	artifact.ICOName = ICOName(base, size)
	artifact.ICO = icoData
	return sizeResult{artifact: artifact}
}

// buildCombined packs every emitted size into one icon, smallest first.
func (r *Result) buildCombined(opts []ico.Option) error {
	var frames []*Artifact
	for i := range r.Artifacts {
		if r.Artifacts[i].HasICO() {
			frames = append(frames, &r.Artifacts[i])
		}
	}
	if len(frames) == 0 {
		return nil
	}
	sort.SliceStable(frames, func(i, j int) bool {
		return frames[i].Size < frames[j].Size
	})

	images := make([][]byte, len(frames))
	for i, a := range frames {
		images[i] = a.PNG
	}
	data, err := ico.Encode(images, opts...)
	if err != nil {
		return err
	}
	r.CombinedName = r.BaseName + ico.Extension
	r.Combined = data
	return nil
}

// WriteDir writes every artifact below dir using the bundle layout.
func (r *Result) WriteDir(dir string) error {
	for _, sub := range []string{PNGDir, ICODir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return fmt.Errorf("create %s dir: %w", sub, err)
		}
	}

	for _, a := range r.Artifacts {
		if err := writeFile(dir, a.PNGName, a.PNG); err != nil {
			return err
		}
		if a.HasICO() {
			if err := writeFile(dir, a.ICOName, a.ICO); err != nil {
				return err
			}
		}
	}
	if r.Combined != nil {
		if err := writeFile(dir, r.CombinedName, r.Combined); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(dir, name string, data []byte) error {
	target := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.WriteFile(target, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
