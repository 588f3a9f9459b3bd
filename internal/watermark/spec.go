package watermark

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/mazznoer/csscolorparser"
)

// CanvasSize is the width and height of every watermarked image.
const CanvasSize = 500

// DefaultJPEGQuality is used when Spec.JPEGQuality is zero.
const DefaultJPEGQuality = 90

// Spec describes the overlay applied to every image. A Spec is copied into
// the Renderer and never mutated afterwards.
type Spec struct {
	Text     string      // Text drawn on the overlay
	Color    color.NRGBA // Text colour, alpha included
	FontSize float64     // Font size in pixels
	Angle    float64     // Clockwise rotation of the text layer in radians, about the canvas centre
	Position image.Point // Top-left corner of the text before rotation

	Graphic         image.Image // Optional logo composited over the text layer
	GraphicPosition image.Point // Top-left corner of the graphic

	Opacity float64 // Overlay opacity in (0, 1], 0 selects 1
	Filter  string  // Resampling filter: nearest, box, linear, catmullrom, lanczos

	JPEGQuality      int  // 1-100, 0 selects DefaultJPEGQuality
	PreserveMetadata bool // Carry Exif and ICC data over from the source
}

// DefaultSpec returns the stock filigram watermark: a translucent black
// diagonal copyright line.
func DefaultSpec() Spec {
	const height = 28.0
	return Spec{
		Text:             "© Copyright Filigram",
		Color:            color.NRGBA{R: 0, G: 0, B: 0, A: 110},
		FontSize:         height * 2.3,
		Angle:            0.8,
		Position:         image.Pt(0, 210),
		Opacity:          1,
		Filter:           "nearest",
		JPEGQuality:      DefaultJPEGQuality,
		PreserveMetadata: true,
	}
}

var filters = map[string]imaging.ResampleFilter{
	"nearest":    imaging.NearestNeighbor,
	"box":        imaging.Box,
	"linear":     imaging.Linear,
	"catmullrom": imaging.CatmullRom,
	"lanczos":    imaging.Lanczos,
}

// Validate reports every problem with the spec at once.
func (s Spec) Validate() error {
	var errs []error
	if s.Text == "" && s.Graphic == nil {
		errs = append(errs, errors.New("watermark needs text or a graphic"))
	}
	if s.Text != "" && s.FontSize <= 0 {
		errs = append(errs, fmt.Errorf("font size must be positive, got %v", s.FontSize))
	}
	if s.Opacity < 0 || s.Opacity > 1 {
		errs = append(errs, fmt.Errorf("opacity must be within [0, 1], got %v", s.Opacity))
	}
	if s.JPEGQuality < 0 || s.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("jpeg quality must be within [1, 100], got %d", s.JPEGQuality))
	}
	if _, err := s.resampleFilter(); err != nil {
		errs = append(errs, err)
	}
	if s.Graphic != nil {
		if b := s.Graphic.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
			errs = append(errs, errors.New("graphic has no pixels"))
		}
	}
	return errors.Join(errs...)
}

func (s Spec) resampleFilter() (imaging.ResampleFilter, error) {
	name := strings.ToLower(s.Filter)
	if name == "" {
		name = "nearest"
	}
	f, ok := filters[name]
	if !ok {
		return imaging.ResampleFilter{}, fmt.Errorf("unknown resampling filter %q", s.Filter)
	}
	return f, nil
}

// ParseColor parses a CSS colour: "#rgb", "#rgba", "#rrggbb", "#rrggbbaa",
// a name such as "white", or a function such as "rgba(0, 0, 0, 0.4)".
func ParseColor(s string) (color.NRGBA, error) {
	c, err := csscolorparser.Parse(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	r, g, b, a := c.RGBA255()
	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}

// LoadGraphic opens a logo image for Spec.Graphic.
func LoadGraphic(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load graphic %s: %w", path, err)
	}
	return img, nil
}
