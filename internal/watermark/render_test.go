package watermark

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// testImage returns a w x h gradient.
func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode failed: %v", err)
	}
	return buf.Bytes()
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(DefaultSpec())
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}
	return r
}

func TestRenderProducesCanvasSize(t *testing.T) {
	r := newTestRenderer(t)

	sizes := []image.Point{{1, 1}, {500, 500}, {1200, 300}, {37, 911}}
	for _, size := range sizes {
		out, err := r.Render(testImage(size.X, size.Y))
		if err != nil {
			t.Fatalf("Render %v failed: %v", size, err)
		}
		if b := out.Bounds(); b.Dx() != CanvasSize || b.Dy() != CanvasSize {
			t.Errorf("Render %v: expected %dx%d, got %dx%d", size, CanvasSize, CanvasSize, b.Dx(), b.Dy())
		}
	}
}

func TestRenderInvalidGeometry(t *testing.T) {
	r := newTestRenderer(t)

	empty := image.NewNRGBA(image.Rect(0, 0, 0, 10))
	if _, err := r.Render(empty); !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("Expected ErrInvalidGeometry, got %v", err)
	}
	if _, err := r.Render(nil); !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("Expected ErrInvalidGeometry for nil image, got %v", err)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	src := encodePNG(t, testImage(320, 240))

	first, err := newTestRenderer(t).Watermark(src, "a.png")
	if err != nil {
		t.Fatalf("Watermark failed: %v", err)
	}
	second, err := newTestRenderer(t).Watermark(src, "a.png")
	if err != nil {
		t.Fatalf("Watermark failed: %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Errorf("Expected identical output for identical input")
	}
}

func TestOverlayHasInk(t *testing.T) {
	r := newTestRenderer(t)

	overlay := r.Overlay()
	b := overlay.Bounds()
	if b.Dx() != CanvasSize || b.Dy() != CanvasSize {
		t.Fatalf("Expected overlay of %dx%d, got %v", CanvasSize, CanvasSize, b)
	}

	var inked int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := overlay.At(x, y).RGBA(); a > 0 {
				inked++
			}
		}
	}
	if inked == 0 {
		t.Errorf("Expected the overlay to contain visible text")
	}
}

func TestRenderChangesPixels(t *testing.T) {
	r := newTestRenderer(t)

	plain := image.NewNRGBA(image.Rect(0, 0, CanvasSize, CanvasSize))
	for i := range plain.Pix {
		plain.Pix[i] = 255
	}
	out, err := r.Render(plain)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if bytes.Equal(out.Pix, plain.Pix) {
		t.Errorf("Expected the watermark to alter a white image")
	}
}

func TestRenderWithZeroOpacityUsesFullOpacity(t *testing.T) {
	spec := DefaultSpec()
	spec.Opacity = 0
	r, err := NewRenderer(spec)
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}
	if got := r.Spec().Opacity; got != 1 {
		t.Errorf("Expected zero opacity to select 1, got %v", got)
	}

	src := testImage(CanvasSize, CanvasSize)
	zero, err := r.Render(src)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	full, err := newTestRenderer(t).Render(src)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !bytes.Equal(zero.Pix, full.Pix) {
		t.Errorf("Expected zero opacity to render like the default")
	}
	if bytes.Equal(zero.Pix, src.Pix) {
		t.Errorf("Expected the watermark to be visible")
	}
}

func TestRenderWithLowOpacityIsFainter(t *testing.T) {
	white := image.NewNRGBA(image.Rect(0, 0, CanvasSize, CanvasSize))
	for i := range white.Pix {
		white.Pix[i] = 255
	}
	changed := func(opacity float64) int {
		spec := DefaultSpec()
		spec.Opacity = opacity
		r, err := NewRenderer(spec)
		if err != nil {
			t.Fatalf("NewRenderer failed: %v", err)
		}
		out, err := r.Render(white)
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		var sum int
		for i := range out.Pix {
			sum += 255 - int(out.Pix[i])
		}
		return sum
	}

	if faint, full := changed(0.1), changed(1); faint >= full {
		t.Errorf("Expected opacity 0.1 to darken less than 1, got %d and %d", faint, full)
	}
}

func TestRenderWithGraphic(t *testing.T) {
	logo := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for i := range logo.Pix {
		logo.Pix[i] = 255
	}
	spec := DefaultSpec()
	spec.Text = ""
	spec.Graphic = logo
	spec.GraphicPosition = image.Pt(20, 30)

	r, err := NewRenderer(spec)
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}

	black := image.NewNRGBA(image.Rect(0, 0, CanvasSize, CanvasSize))
	for i := 3; i < len(black.Pix); i += 4 {
		black.Pix[i] = 255
	}
	out, err := r.Render(black)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if got := out.NRGBAAt(25, 35); got.R != 255 || got.G != 255 || got.B != 255 {
		t.Errorf("Expected graphic pixel at (25,35), got %v", got)
	}
	if got := out.NRGBAAt(5, 5); got.R != 0 {
		t.Errorf("Expected untouched pixel at (5,5), got %v", got)
	}
}

func TestSpecValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Spec)
		wantErr bool
	}{
		{"default", func(s *Spec) {}, false},
		{"no text no graphic", func(s *Spec) { s.Text = "" }, true},
		{"zero font size", func(s *Spec) { s.FontSize = 0 }, true},
		{"opacity above one", func(s *Spec) { s.Opacity = 1.5 }, true},
		{"negative opacity", func(s *Spec) { s.Opacity = -0.1 }, true},
		{"bad quality", func(s *Spec) { s.JPEGQuality = 101 }, true},
		{"unknown filter", func(s *Spec) { s.Filter = "bicubic-ish" }, true},
		{"uppercase filter", func(s *Spec) { s.Filter = "Lanczos" }, false},
		{"empty filter", func(s *Spec) { s.Filter = "" }, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			spec := DefaultSpec()
			tc.mutate(&spec)
			err := spec.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	testCases := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"#000", color.NRGBA{0, 0, 0, 255}, false},
		{"#fff8", color.NRGBA{255, 255, 255, 136}, false},
		{"#00000070", color.NRGBA{0, 0, 0, 112}, false},
		{"#FF8000", color.NRGBA{255, 128, 0, 255}, false},
		{"white", color.NRGBA{255, 255, 255, 255}, false},
		{"rgba(0, 0, 0, 0.5)", color.NRGBA{0, 0, 0, 128}, false},
		{"#12345", color.NRGBA{}, true},
		{"#zzzzzz", color.NRGBA{}, true},
		{"not-a-colour", color.NRGBA{}, true},
		{"", color.NRGBA{}, true},
	}

	for _, tc := range testCases {
		got, err := ParseColor(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseColor(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseColor(%q) = %v, expected %v", tc.in, got, tc.want)
		}
	}
}
