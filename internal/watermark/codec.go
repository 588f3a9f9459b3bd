package watermark

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"

	// Decoders beyond the ones imaging registers.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Decode reads an image in any registered format.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return img, format, nil
}

// Encode writes img in the format named by ext (".jpg", "png", ...). WebP
// is written lossless. Unknown formats fail with ErrEncodeFailed.
func Encode(w io.Writer, img image.Image, ext string, jpegQuality int) error {
	if strings.EqualFold(strings.TrimPrefix(ext, "."), "webp") {
		if err := nativewebp.Encode(w, img, nil); err != nil {
			return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
		}
		return nil
	}

	format, err := imaging.FormatFromExtension(strings.TrimPrefix(ext, "."))
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrEncodeFailed, ext, err)
	}
	if jpegQuality <= 0 {
		jpegQuality = DefaultJPEGQuality
	}
	if err := imaging.Encode(w, img, format, imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return nil
}

// Output is a watermarked file ready to be written.
type Output struct {
	Data []byte
	// MetadataErr is set when Exif or ICC data could not be carried over.
	// Data is still valid without it.
	MetadataErr error
}

// Watermark decodes src, renders it and encodes the result in the format
// given by the destination path. With PreserveMetadata set, Exif and ICC
// data are carried over from src.
func (r *Renderer) Watermark(src []byte, dstPath string) (Output, error) {
	img, _, err := Decode(bytes.NewReader(src))
	if err != nil {
		return Output{}, err
	}
	rendered, err := r.Render(img)
	if err != nil {
		return Output{}, err
	}

	ext := filepath.Ext(dstPath)
	var buf bytes.Buffer
	if err := Encode(&buf, rendered, ext, r.spec.JPEGQuality); err != nil {
		return Output{}, err
	}
	out := Output{Data: buf.Bytes()}

	if r.spec.PreserveMetadata {
		withMeta, err := CopyMetadata(src, out.Data, ext)
		if err != nil {
			out.MetadataErr = err
			return out, nil
		}
		out.Data = withMeta
	}
	return out, nil
}
