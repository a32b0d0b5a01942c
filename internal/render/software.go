package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/vector"

	"github.com/JonMunkholm/SoilMap/internal/core"
)

const (
	earthCircumference = 2 * math.Pi * 6378137.0
	tileSize           = 256.0

	// Leaflet's default marker icon is 25x41 anchored at the tip.
	pinHeadRadius = 12.5
	pinHeadOffset = 28.5

	// CircleMarker defaults: 3px stroke, 20% fill.
	circleStroke      = 3.0
	circleFillOpacity = 0x33
)

var (
	backgroundColor = color.RGBA{R: 0xEC, G: 0xF0, B: 0xF1, A: 0xFF}
	gridColor       = color.RGBA{R: 0xC9, G: 0xD1, B: 0xD5, A: 0xFF}
	gridLabelColor  = color.RGBA{R: 0x7F, G: 0x8C, B: 0x8D, A: 0xFF}
	legendBorder    = color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xFF}
	textColor       = color.RGBA{R: 0x22, G: 0x22, B: 0x22, A: 0xFF}
)

// graticuleSteps are candidate grid spacings in degrees, finest first.
var graticuleSteps = []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 20, 45}

// Software rasterizes a surface without any external process: a plain
// background with a lat/lng graticule, the markers, and the legend panel.
type Software struct {
	width, height int
	legend        []core.LegendEntry
	font          *truetype.Font
}

// NewSoftware creates a software rasterizer producing width x height PNGs.
// When legend is non-empty it is drawn in the lower-left corner.
func NewSoftware(width, height int, legend []core.LegendEntry) (*Software, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Software{width: width, height: height, legend: legend, font: f}, nil
}

// Name implements Rasterizer.
func (s *Software) Name() string { return BackendSoftware }

// Rasterize implements Rasterizer.
func (s *Software) Rasterize(ctx context.Context, surface *core.MapSurface) ([]byte, error) {
	img, err := s.Draw(ctx, surface)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &RasterizationError{Backend: BackendSoftware, Err: fmt.Errorf("encode png: %w", err)}
	}
	return buf.Bytes(), nil
}

// Draw renders surface into a new RGBA image.
func (s *Software) Draw(ctx context.Context, surface *core.MapSurface) (*image.RGBA, error) {
	if surface == nil {
		return nil, &RasterizationError{Backend: BackendSoftware, Err: fmt.Errorf("nil surface")}
	}

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	vp := newViewport(surface, s.width, s.height)
	if err := s.drawGraticule(img, vp); err != nil {
		return nil, &RasterizationError{Backend: BackendSoftware, Err: err}
	}

	z := vector.NewRasterizer(s.width, s.height)
	for i, m := range surface.Markers {
		if i%256 == 0 && ctx.Err() != nil {
			return nil, &RasterizationError{Backend: BackendSoftware, Err: ctx.Err()}
		}
		px := vp.toPixel(m.Latitude, m.Longitude)
		if !vp.visible(px) {
			continue
		}
		if m.IsCircle() {
			drawCircleMarker(z, img, px, float32(m.Radius), RGBA(m.Color), m.Filled)
		} else {
			drawPin(z, img, px, RGBA(m.Color), m.Icon)
		}
	}

	if len(s.legend) > 0 {
		if err := s.drawLegend(img); err != nil {
			return nil, &RasterizationError{Backend: BackendSoftware, Err: err}
		}
	}

	return img, nil
}

// viewport maps WGS84 coordinates to image pixels with Web Mercator at a
// fixed zoom, centered on the surface center.
type viewport struct {
	center orb.Point // Mercator meters
	zoom   int
	res    float64 // meters per pixel
	w, h   float64
	bound  orb.Bound // pixel space, padded so partially visible markers draw
}

func newViewport(s *core.MapSurface, w, h int) viewport {
	res := earthCircumference / (tileSize * math.Exp2(float64(s.Zoom)))
	pad := pinHeadOffset + pinHeadRadius
	return viewport{
		center: project.WGS84.ToMercator(orb.Point{s.Center.Lng, s.Center.Lat}),
		zoom:   s.Zoom,
		res:    res,
		w:      float64(w),
		h:      float64(h),
		bound: orb.Bound{
			Min: orb.Point{-pad, -pad},
			Max: orb.Point{float64(w) + pad, float64(h) + pad},
		},
	}
}

func (v viewport) toPixel(lat, lng float64) orb.Point {
	m := project.WGS84.ToMercator(orb.Point{lng, lat})
	return orb.Point{
		(m[0]-v.center[0])/v.res + v.w/2,
		(v.center[1]-m[1])/v.res + v.h/2,
	}
}

func (v viewport) toLatLng(px orb.Point) core.LatLng {
	m := orb.Point{
		v.center[0] + (px[0]-v.w/2)*v.res,
		v.center[1] - (px[1]-v.h/2)*v.res,
	}
	p := project.Mercator.ToWGS84(m)
	return core.LatLng{Lat: p[1], Lng: p[0]}
}

func (v viewport) visible(px orb.Point) bool {
	return v.bound.Contains(px)
}

// graticuleStep picks the finest spacing that keeps lines at least 100px
// apart.
func graticuleStep(zoom int) float64 {
	pxPerDegree := tileSize * math.Exp2(float64(zoom)) / 360
	for _, step := range graticuleSteps {
		if step*pxPerDegree >= 100 {
			return step
		}
	}
	return graticuleSteps[len(graticuleSteps)-1]
}

func (s *Software) drawGraticule(img *image.RGBA, vp viewport) error {
	topLeft := vp.toLatLng(orb.Point{0, 0})
	bottomRight := vp.toLatLng(orb.Point{vp.w, vp.h})
	step := graticuleStep(vp.zoom)
	prec := decimals(step)

	for lng := math.Ceil(topLeft.Lng/step) * step; lng <= bottomRight.Lng; lng += step {
		x := int(math.Round(vp.toPixel(topLeft.Lat, lng)[0]))
		for y := 0; y < img.Bounds().Dy(); y++ {
			img.SetRGBA(x, y, gridColor)
		}
		if err := s.drawText(img, x+3, 12, strconv.FormatFloat(lng, 'f', prec, 64), 10, gridLabelColor); err != nil {
			return err
		}
	}
	for lat := math.Ceil(bottomRight.Lat/step) * step; lat <= topLeft.Lat; lat += step {
		y := int(math.Round(vp.toPixel(lat, topLeft.Lng)[1]))
		for x := 0; x < img.Bounds().Dx(); x++ {
			img.SetRGBA(x, y, gridColor)
		}
		if err := s.drawText(img, 3, y-3, strconv.FormatFloat(lat, 'f', prec, 64), 10, gridLabelColor); err != nil {
			return err
		}
	}
	return nil
}

func decimals(step float64) int {
	n := 0
	for step < 1 && n < 6 {
		step *= 10
		n++
	}
	return n
}

// circlePath appends a circle to z as four cubic Béziers. Reversing the
// direction punches a hole when drawn over a larger circle.
func circlePath(z *vector.Rasterizer, cx, cy, r float32, reverse bool) {
	const k = 0.5522848
	c := r * k
	if !reverse {
		z.MoveTo(cx+r, cy)
		z.CubeTo(cx+r, cy+c, cx+c, cy+r, cx, cy+r)
		z.CubeTo(cx-c, cy+r, cx-r, cy+c, cx-r, cy)
		z.CubeTo(cx-r, cy-c, cx-c, cy-r, cx, cy-r)
		z.CubeTo(cx+c, cy-r, cx+r, cy-c, cx+r, cy)
	} else {
		z.MoveTo(cx+r, cy)
		z.CubeTo(cx+r, cy-c, cx+c, cy-r, cx, cy-r)
		z.CubeTo(cx-c, cy-r, cx-r, cy-c, cx-r, cy)
		z.CubeTo(cx-r, cy+c, cx-c, cy+r, cx, cy+r)
		z.CubeTo(cx+c, cy+r, cx+r, cy+c, cx+r, cy)
	}
	z.ClosePath()
}

func fill(z *vector.Rasterizer, dst *image.RGBA, c color.Color) {
	z.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{})
	z.Reset(dst.Bounds().Dx(), dst.Bounds().Dy())
}

// drawPin draws a teardrop marker whose tip sits on px.
func drawPin(z *vector.Rasterizer, dst *image.RGBA, px orb.Point, c color.RGBA, icon core.MarkerIcon) {
	x, y := float32(px[0]), float32(px[1])
	hx, hy := x, y-pinHeadOffset

	circlePath(z, hx, hy, pinHeadRadius, false)
	fill(z, dst, c)

	// Body: tangent lines from the head down to the tip.
	z.MoveTo(hx-pinHeadRadius*0.83, hy+pinHeadRadius*0.55)
	z.LineTo(hx+pinHeadRadius*0.83, hy+pinHeadRadius*0.55)
	z.LineTo(x, y)
	z.ClosePath()
	fill(z, dst, c)

	switch icon {
	case core.IconStar:
		starPath(z, hx, hy, 7, 3)
		fill(z, dst, color.White)
	default:
		// "i" glyph: dot above a stem.
		circlePath(z, hx, hy-5, 1.8, false)
		z.MoveTo(hx-1.5, hy-1.5)
		z.LineTo(hx+1.5, hy-1.5)
		z.LineTo(hx+1.5, hy+6)
		z.LineTo(hx-1.5, hy+6)
		z.ClosePath()
		fill(z, dst, color.White)
	}
}

func starPath(z *vector.Rasterizer, cx, cy, outer, inner float32) {
	for i := 0; i < 10; i++ {
		r := outer
		if i%2 == 1 {
			r = inner
		}
		a := float64(i)*math.Pi/5 - math.Pi/2
		x := cx + r*float32(math.Cos(a))
		y := cy + r*float32(math.Sin(a))
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
}

// drawCircleMarker draws a fixed-radius circle centered on px: a translucent
// fill and an opaque stroke.
func drawCircleMarker(z *vector.Rasterizer, dst *image.RGBA, px orb.Point, r float32, c color.RGBA, filled bool) {
	x, y := float32(px[0]), float32(px[1])

	if filled {
		circlePath(z, x, y, r, false)
		fill(z, dst, color.NRGBA{R: c.R, G: c.G, B: c.B, A: circleFillOpacity})
	}

	circlePath(z, x, y, r+circleStroke/2, false)
	circlePath(z, x, y, r-circleStroke/2, true)
	fill(z, dst, c)
}

func (s *Software) drawText(img *image.RGBA, x, y int, text string, size float64, c color.Color) error {
	fc := freetype.NewContext()
	fc.SetDPI(72)
	fc.SetFont(s.font)
	fc.SetFontSize(size)
	fc.SetClip(img.Bounds())
	fc.SetDst(img)
	fc.SetSrc(image.NewUniform(c))
	fc.SetHinting(font.HintingFull)

	_, err := fc.DrawString(text, freetype.Pt(x, y))
	return err
}

// legendRect returns the legend panel bounds for an image of the given
// size.
func legendRect(width, height, entries int) image.Rectangle {
	const (
		margin = 10
		w      = 230
	)
	h := 34 + entries*20
	return image.Rect(margin, height-margin-h, margin+w, height-margin).Intersect(image.Rect(0, 0, width, height))
}

func (s *Software) drawLegend(img *image.RGBA) error {
	r := legendRect(img.Bounds().Dx(), img.Bounds().Dy(), len(s.legend))

	draw.Draw(img, r, image.NewUniform(color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xE6}), image.Point{}, draw.Over)
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, legendBorder)
		img.SetRGBA(x, r.Max.Y-1, legendBorder)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, legendBorder)
		img.SetRGBA(r.Max.X-1, y, legendBorder)
	}

	if err := s.drawText(img, r.Min.X+8, r.Min.Y+18, core.LegendTitle, 13, textColor); err != nil {
		return err
	}

	z := vector.NewRasterizer(img.Bounds().Dx(), img.Bounds().Dy())
	for i, e := range s.legend {
		y := r.Min.Y + 38 + i*20
		circlePath(z, float32(r.Min.X+15), float32(y-4), 6, false)
		fill(z, img, RGBA(e.Color))
		label := "Code " + strconv.Itoa(e.Code) + ": " + e.Meaning
		if err := s.drawText(img, r.Min.X+28, y, label, 11, textColor); err != nil {
			return err
		}
	}
	return nil
}
