// Package plot draws SPT depth profiles as PNG images.
package plot

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/couchcryptid/borehole-data-service/internal/domain"
)

// Options configures the canvas and text face.
type Options struct {
	Width    int
	Height   int
	FontPath string  // optional TTF; the built-in bitmap face is used when empty
	FontSize float64 // points, only used with FontPath
}

// Renderer draws profiles onto a fixed-size canvas. It is safe for
// concurrent use; each Render builds its own drawing context and face.
type Renderer struct {
	width    int
	height   int
	font     *truetype.Font
	fontSize float64
}

// NewRenderer creates a Renderer, loading the font face if one is configured.
func NewRenderer(opts Options) (*Renderer, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", opts.Width, opts.Height)
	}
	r := &Renderer{width: opts.Width, height: opts.Height}
	if opts.FontPath != "" {
		size := opts.FontSize
		if size <= 0 {
			size = 12
		}
		parsed, err := loadFont(opts.FontPath)
		if err != nil {
			return nil, err
		}
		r.font = parsed
		r.fontSize = size
	}
	return r, nil
}

func loadFont(fontPath string) (*truetype.Font, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("read plot font: %w", err)
	}
	parsed, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parse plot font: %w", err)
	}
	return parsed, nil
}

// newFace returns a face for one render, or nil for gg's built-in face.
// Faces cache glyphs and must not be shared between goroutines.
func (r *Renderer) newFace() font.Face {
	if r.font == nil {
		return nil
	}
	return truetype.NewFace(r.font, &truetype.Options{
		Size:    r.fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Plot area margins in pixels.
const (
	marginLeft   = 80.0
	marginRight  = 30.0
	marginTop    = 50.0
	marginBottom = 60.0

	gridDivisions = 5
	markerRadius  = 4.0
	lineWidth     = 2.0
)

var (
	colorBackground = color.White
	colorAxis       = color.Black
	colorGrid       = color.RGBA{R: 0xd0, G: 0xd0, B: 0xd0, A: 0xff}
	colorText       = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}
)

var seriesColors = map[string]color.Color{
	"blue":  color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	"red":   color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	"green": color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	"black": color.Black,
}

func seriesColor(name string) color.Color {
	if c, ok := seriesColors[name]; ok {
		return c
	}
	return seriesColors[domain.ColorBlue]
}

// axis maps data values in [min, max] onto pixel positions [from, to].
// An inverted axis is expressed by from > to.
type axis struct {
	min, max float64
	from, to float64
}

func (a axis) project(v float64) float64 {
	if a.max == a.min {
		return a.from
	}
	return a.from + (v-a.min)/(a.max-a.min)*(a.to-a.from)
}

func (a axis) ticks() []float64 {
	out := make([]float64, gridDivisions+1)
	step := (a.max - a.min) / gridDivisions
	for i := range out {
		out[i] = a.min + float64(i)*step
	}
	return out
}

// niceCeil rounds v up to 1, 2, 2.5 or 5 times a power of ten so ticks land
// on readable values.
func niceCeil(v float64) float64 {
	if v <= 0 {
		return 1
	}
	exp := math.Pow(10, math.Floor(math.Log10(v)))
	for _, m := range []float64{1, 2, 2.5, 5, 10} {
		if v <= m*exp {
			return m * exp
		}
	}
	return 10 * exp
}

func dataRange(values []float64) (lo, hi float64) {
	lo, hi = 0, 0
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// layout computes the axes for a profile on a w by h canvas. Both axes start
// at zero (or the most negative value). The depth axis runs top to bottom
// when the profile asks for it to be inverted.
func layout(p domain.Profile, w, h float64) (x, y axis) {
	xLo, xHi := dataRange(p.X)
	yLo, yHi := dataRange(p.Y)

	x = axis{min: xLo, max: niceCeil(xHi), from: marginLeft, to: w - marginRight}
	y = axis{min: yLo, max: niceCeil(yHi)}

	top, bottom := marginTop, h-marginBottom
	if p.InvertY {
		y.from, y.to = top, bottom
	} else {
		y.from, y.to = bottom, top
	}
	return x, y
}

func formatTick(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}

// Render draws p and encodes it as PNG to w.
func (r *Renderer) Render(w io.Writer, p domain.Profile) error {
	if len(p.X) != len(p.Y) {
		return fmt.Errorf("profile %s: %d x values but %d y values", p.BoreholeID, len(p.X), len(p.Y))
	}

	width, height := float64(r.width), float64(r.height)
	dc := gg.NewContext(r.width, r.height)
	if face := r.newFace(); face != nil {
		dc.SetFontFace(face)
	}

	dc.SetColor(colorBackground)
	dc.Clear()

	xa, ya := layout(p, width, height)
	left, right := marginLeft, width-marginRight
	top, bottom := marginTop, height-marginBottom

	// Grid and tick labels.
	dc.SetLineWidth(1)
	for _, v := range xa.ticks() {
		px := xa.project(v)
		if p.Grid {
			dc.SetColor(colorGrid)
			dc.DrawLine(px, top, px, bottom)
			dc.Stroke()
		}
		dc.SetColor(colorText)
		dc.DrawStringAnchored(formatTick(v), px, bottom+14, 0.5, 0.5)
	}
	for _, v := range ya.ticks() {
		py := ya.project(v)
		if p.Grid {
			dc.SetColor(colorGrid)
			dc.DrawLine(left, py, right, py)
			dc.Stroke()
		}
		dc.SetColor(colorText)
		dc.DrawStringAnchored(formatTick(v), left-8, py, 1, 0.5)
	}

	// Frame.
	dc.SetColor(colorAxis)
	dc.DrawRectangle(left, top, right-left, bottom-top)
	dc.Stroke()

	// Series: polyline in reading order, then markers on top.
	c := seriesColor(p.Color)
	dc.SetColor(c)
	if p.LineStyle != "" && len(p.X) > 1 {
		dc.SetLineWidth(lineWidth)
		if p.LineStyle == "--" {
			dc.SetDash(6, 4)
		}
		dc.MoveTo(xa.project(p.X[0]), ya.project(p.Y[0]))
		for i := 1; i < len(p.X); i++ {
			dc.LineTo(xa.project(p.X[i]), ya.project(p.Y[i]))
		}
		dc.Stroke()
		dc.SetDash()
	}
	if p.Marker != "" {
		for i := range p.X {
			dc.DrawCircle(xa.project(p.X[i]), ya.project(p.Y[i]), markerRadius)
			dc.Fill()
		}
	}

	// Title and axis labels.
	dc.SetColor(colorText)
	dc.DrawStringAnchored(p.Title, width/2, marginTop/2, 0.5, 0.5)
	dc.DrawStringAnchored(p.XLabel, (left+right)/2, height-marginBottom/3, 0.5, 0.5)
	dc.Push()
	dc.RotateAbout(-math.Pi/2, marginLeft/4, (top+bottom)/2)
	dc.DrawStringAnchored(p.YLabel, marginLeft/4, (top+bottom)/2, 0.5, 0.5)
	dc.Pop()

	if p.Legend && p.SeriesLabel != "" {
		drawLegend(dc, p, c, right, top)
	}

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode profile %s: %w", p.BoreholeID, err)
	}
	return nil
}

// drawLegend places a boxed series key in the lower right corner of the
// plot area, where an inverted depth profile is usually empty.
func drawLegend(dc *gg.Context, p domain.Profile, c color.Color, right, top float64) {
	tw, th := dc.MeasureString(p.SeriesLabel)
	boxW, boxH := tw+50, th+16
	x0 := right - boxW - 10
	y0 := top + 10
	if p.InvertY {
		y0 = float64(dc.Height()) - marginBottom - boxH - 10
	}

	dc.SetColor(colorBackground)
	dc.DrawRectangle(x0, y0, boxW, boxH)
	dc.FillPreserve()
	dc.SetColor(colorGrid)
	dc.SetLineWidth(1)
	dc.Stroke()

	midY := y0 + boxH/2
	dc.SetColor(c)
	dc.SetLineWidth(lineWidth)
	dc.DrawLine(x0+8, midY, x0+32, midY)
	dc.Stroke()
	if p.Marker != "" {
		dc.DrawCircle(x0+20, midY, markerRadius)
		dc.Fill()
	}

	dc.SetColor(colorText)
	dc.DrawStringAnchored(p.SeriesLabel, x0+40, midY, 0, 0.5)
}

// RenderPNG draws p and returns the encoded bytes.
func (r *Renderer) RenderPNG(p domain.Profile) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileRenderer implements domain.ProfileRenderer by writing one PNG per
// borehole into a directory.
type FileRenderer struct {
	renderer *Renderer
	dir      string
}

// NewFileRenderer creates a FileRenderer writing into dir.
func NewFileRenderer(r *Renderer, dir string) *FileRenderer {
	return &FileRenderer{renderer: r, dir: dir}
}

// Path returns the file a borehole's profile is written to.
func (f *FileRenderer) Path(boreholeID string) string {
	return filepath.Join(f.dir, sanitizeFileName(boreholeID)+".png")
}

// RenderProfile writes the profile PNG, replacing any previous file.
func (f *FileRenderer) RenderProfile(ctx context.Context, p domain.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := f.renderer.RenderPNG(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	if err := os.WriteFile(f.Path(p.BoreholeID), data, 0o644); err != nil {
		return fmt.Errorf("write profile %s: %w", p.BoreholeID, err)
	}
	return nil
}

func sanitizeFileName(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			out[i] = '_'
		}
	}
	if len(out) == 0 {
		return "borehole"
	}
	return string(out)
}
