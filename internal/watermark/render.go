package watermark

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Renderer applies one Spec to any number of images. The overlay is drawn
// once in NewRenderer; Render only reads it, so a Renderer may be shared by
// all workers.
type Renderer struct {
	spec    Spec
	filter  imaging.ResampleFilter
	overlay *image.NRGBA
}

// NewRenderer validates spec and draws its overlay.
func NewRenderer(spec Spec) (*Renderer, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid watermark: %w", err)
	}
	if spec.JPEGQuality == 0 {
		spec.JPEGQuality = DefaultJPEGQuality
	}
	if spec.Opacity == 0 {
		spec.Opacity = 1
	}
	filter, _ := spec.resampleFilter()

	overlay, err := drawOverlay(spec)
	if err != nil {
		return nil, err
	}
	return &Renderer{spec: spec, filter: filter, overlay: overlay}, nil
}

// Spec returns the spec the renderer was built from.
func (r *Renderer) Spec() Spec {
	return r.spec
}

// Overlay returns the pre-drawn overlay layer.
func (r *Renderer) Overlay() image.Image {
	return r.overlay
}

// Render stretches img to CanvasSize x CanvasSize, ignoring its aspect ratio,
// and composites the overlay on top.
func (r *Renderer) Render(img image.Image) (*image.NRGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidGeometry)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: source is %dx%d", ErrInvalidGeometry, b.Dx(), b.Dy())
	}

	canvas := imaging.Resize(img, CanvasSize, CanvasSize, r.filter)
	mask := image.NewUniform(color.Alpha{A: uint8(math.Round(r.spec.Opacity * 0xff))})
	draw.DrawMask(canvas, canvas.Bounds(), r.overlay, image.Point{}, mask, image.Point{}, draw.Over)
	return canvas, nil
}

// drawOverlay renders the text layer, rotates it about the centre and crops
// it back to the canvas, then adds the graphic.
func drawOverlay(spec Spec) (*image.NRGBA, error) {
	layer := imaging.New(CanvasSize, CanvasSize, color.NRGBA{})

	if spec.Text != "" {
		if err := drawText(layer, spec); err != nil {
			return nil, err
		}
		if spec.Angle != 0 {
			degrees := -spec.Angle * 180 / math.Pi
			layer = imaging.Rotate(layer, degrees, color.NRGBA{})
			layer = imaging.CropCenter(layer, CanvasSize, CanvasSize)
		}
	}

	if spec.Graphic != nil {
		gb := spec.Graphic.Bounds()
		dst := image.Rectangle{Min: spec.GraphicPosition, Max: spec.GraphicPosition.Add(gb.Size())}
		draw.Draw(layer, dst, spec.Graphic, gb.Min, draw.Over)
	}
	return layer, nil
}

func drawText(dst *image.NRGBA, spec Spec) error {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    spec.FontSize,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(spec.Color),
		Face: face,
		Dot:  fixed.P(spec.Position.X, spec.Position.Y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(spec.Text)
	return nil
}
