package watermark

import "errors"

var (
	// ErrDecodeFailed means the source bytes are not a readable image.
	ErrDecodeFailed = errors.New("decode failed")
	// ErrInvalidGeometry means the source image has no pixels to resize.
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrEncodeFailed means the watermarked image could not be written in the
	// destination's format.
	ErrEncodeFailed = errors.New("encode failed")
)
