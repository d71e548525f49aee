// Package chart draws a measured sounding against its fitted model.
package chart

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/cwbudde/soilfit/internal/fit"
)

// samples is the resolution of the fitted curve
const samples = 200

// Options controls the figure
type Options struct {
	Title string
	// LogX draws the depth axis on a logarithmic scale
	LogX bool
	// Model evaluates the fitted curve; the zero value is the default series
	Model  fit.Model
	Width  vg.Length
	Height vg.Length
	// Format is any format understood by gonum/plot (png, svg, pdf, ...)
	Format string
}

// DefaultOptions returns a 6x4 inch PNG
func DefaultOptions() Options {
	return Options{
		Title:  "Two-Layer Soil Model",
		Model:  fit.DefaultModel(),
		Width:  6 * vg.Inch,
		Height: 4 * vg.Inch,
		Format: "png",
	}
}

// New builds the plot of measured points and the model at params
func New(curve fit.Curve, params fit.Params, opts Options) (*plot.Plot, error) {
	if curve.Len() == 0 {
		return nil, fmt.Errorf("chart: empty curve")
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Depth a [m]"
	p.Y.Label.Text = "Resistivity p [ohm.m]"
	p.Add(plotter.NewGrid())
	if opts.LogX {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	}

	measured := make(plotter.XYs, curve.Len())
	for i := range curve.Depths {
		measured[i].X = curve.Depths[i]
		measured[i].Y = curve.Resistivities[i]
	}
	scatter, err := plotter.NewScatter(measured)
	if err != nil {
		return nil, fmt.Errorf("chart: measured points: %w", err)
	}
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Color = color.Black
	scatter.GlyphStyle.Radius = vg.Points(3)

	xs := depthGrid(curve.Depths, opts.LogX)
	ys := opts.Model.Evaluate(params, xs)
	fitted := make(plotter.XYs, 0, len(xs))
	for i := range xs {
		if math.IsNaN(ys[i]) || math.IsInf(ys[i], 0) {
			continue
		}
		fitted = append(fitted, plotter.XY{X: xs[i], Y: ys[i]})
	}
	line, err := plotter.NewLine(fitted)
	if err != nil {
		return nil, fmt.Errorf("chart: fitted model: %w", err)
	}
	line.LineStyle.Color = color.RGBA{B: 255, A: 255}
	line.LineStyle.Width = vg.Points(1.5)

	p.Add(scatter, line)
	p.Legend.Add("Measured Resistivity Curve", scatter)
	p.Legend.Add("Fitted Model", line)
	p.Legend.Top = true
	return p, nil
}

// Render writes the figure to w
func Render(w io.Writer, curve fit.Curve, params fit.Params, opts Options) error {
	p, err := New(curve, params, opts)
	if err != nil {
		return err
	}
	width, height := opts.Width, opts.Height
	if width <= 0 || height <= 0 {
		def := DefaultOptions()
		width, height = def.Width, def.Height
	}
	format := opts.Format
	if format == "" {
		format = "png"
	}

	wt, err := p.WriterTo(width, height, format)
	if err != nil {
		return fmt.Errorf("chart: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("chart: write: %w", err)
	}
	return nil
}

// Save writes the figure to path, choosing the format from its extension
func Save(path string, curve fit.Curve, params fit.Params, opts Options) error {
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
		opts.Format = strings.ToLower(ext)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("chart: %w", err)
	}
	if err := Render(f, curve, params, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// depthGrid spans the measured depths with evenly spaced samples, in log
// space when logX is set
func depthGrid(depths []float64, logX bool) []float64 {
	sorted := append([]float64(nil), depths...)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		return []float64{lo}
	}

	xs := make([]float64, samples)
	for i := range xs {
		t := float64(i) / float64(samples-1)
		if logX {
			xs[i] = lo * math.Pow(hi/lo, t)
		} else {
			xs[i] = lo + t*(hi-lo)
		}
	}
	return xs
}
