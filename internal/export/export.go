// Package export converts a composed map into a downloadable image.
//
// The rasterizer always produces PNG. A PNG export is passed through
// unchanged; a JPG export is decoded, stripped of its alpha channel and
// re-encoded. The result is delivered inline as a base64 data URI, so no
// file is ever written on the server.
package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/SoilMap/internal/core"
	"github.com/JonMunkholm/SoilMap/internal/logging"
	"github.com/JonMunkholm/SoilMap/internal/render"
)

// Format is an export format as offered to the user.
type Format string

const (
	JPG Format = "JPG"
	PNG Format = "PNG"
)

// Formats lists the selectable formats in display order.
var Formats = []Format{JPG, PNG}

// BaseName is the download file name without extension.
const BaseName = "soil_status_map"

// SuccessMessage is shown next to the download link.
const SuccessMessage = "Map exported successfully!"

// DefaultJPEGQuality matches the quality most imaging libraries default to.
const DefaultJPEGQuality = 75

// ErrUnsupportedFormat is returned for anything other than JPG or PNG.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat parses a format selection. Matching ignores case and
// surrounding space; "JPEG" is accepted for JPG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "JPG", "JPEG":
		return JPG, nil
	case "PNG":
		return PNG, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// MIMEType returns the media type of f.
func (f Format) MIMEType() string {
	if f == JPG {
		return "image/jpeg"
	}
	return "image/png"
}

// Extension returns the file extension of f, without the dot. It is also
// the subtype of the MIME type.
func (f Format) Extension() string {
	if f == JPG {
		return "jpeg"
	}
	return "png"
}

// FileName returns the download file name for f.
func (f Format) FileName() string {
	return BaseName + "." + f.Extension()
}

// Image is an exported raster. It lives only for the request that made it.
type Image struct {
	ID       uuid.UUID `json:"id"`
	Format   Format    `json:"format"`
	MIMEType string    `json:"mime_type"`
	FileName string    `json:"file_name"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Data     []byte    `json:"-"`
}

// DataURI returns the image as a base64 data URI.
func (img *Image) DataURI() string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Exporter renders surfaces through a Rasterizer, bounded by a limiter.
type Exporter struct {
	rasterizer  render.Rasterizer
	limiter     *core.RenderLimiter
	jpegQuality int
}

// New creates an Exporter. limiter may be nil for unbounded rendering;
// jpegQuality outside 1-100 falls back to DefaultJPEGQuality.
func New(r render.Rasterizer, limiter *core.RenderLimiter, jpegQuality int) *Exporter {
	if jpegQuality < 1 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}
	return &Exporter{rasterizer: r, limiter: limiter, jpegQuality: jpegQuality}
}

// Backend names the rasterizer in use.
func (e *Exporter) Backend() string {
	return e.rasterizer.Name()
}

// Export rasterizes surface and encodes it as format.
//
// Errors: ErrUnsupportedFormat, core.ErrTooManyRenders when no render slot
// frees up in time, or a *render.RasterizationError.
func (e *Exporter) Export(ctx context.Context, surface *core.MapSurface, format Format) (*Image, error) {
	if format != JPG && format != PNG {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(format))
	}

	id := uuid.New()
	logger := logging.WithFields(ctx, "export_id", id, "format", format, "backend", e.rasterizer.Name())
	start := time.Now()

	if e.limiter != nil {
		release, err := e.limiter.Acquire(ctx)
		if err != nil {
			logger.Warn("export rejected", "error", err)
			return nil, err
		}
		defer release()
	}

	raw, err := e.rasterizer.Rasterize(ctx, surface)
	if err != nil {
		return nil, err
	}

	img := &Image{
		ID:       id,
		Format:   format,
		MIMEType: format.MIMEType(),
		FileName: format.FileName(),
	}

	switch format {
	case PNG:
		cfg, err := png.DecodeConfig(bytes.NewReader(raw))
		if err != nil {
			return nil, e.rasterError(fmt.Errorf("decode png: %w", err))
		}
		img.Data, img.Width, img.Height = raw, cfg.Width, cfg.Height

	case JPG:
		decoded, err := png.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, e.rasterError(fmt.Errorf("decode png: %w", err))
		}
		rgb := StripAlpha(decoded)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, rgb, &jpeg.Options{Quality: e.jpegQuality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		b := rgb.Bounds()
		img.Data, img.Width, img.Height = buf.Bytes(), b.Dx(), b.Dy()
	}

	logger.Info("map exported",
		"bytes", len(img.Data),
		"width", img.Width,
		"height", img.Height,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return img, nil
}

func (e *Exporter) rasterError(err error) error {
	return &render.RasterizationError{Backend: e.rasterizer.Name(), Err: err}
}

// StripAlpha returns an opaque copy of src. Color channels are kept as
// they are (not composited onto a background) and alpha is set to 255.
func StripAlpha(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF})
		}
	}
	return dst
}
