package watermark

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	pngstructure "github.com/dsoprea/go-png-image-structure/v2"
)

var jpegICCHeader = []byte("ICC_PROFILE\x00")

// CopyMetadata carries the Exif and ICC profile of src over to dst, which must
// be the same format. JPEG and PNG are supported; other formats return dst
// unchanged. Existing Exif or ICC data in dst is replaced.
func CopyMetadata(src, dst []byte, ext string) ([]byte, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return copyJPEGMetadata(src, dst)
	case "png":
		return copyPNGMetadata(src, dst)
	default:
		return dst, nil
	}
}

func parseJPEG(data []byte) (*jpegstructure.SegmentList, error) {
	mc, err := jpegstructure.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return nil, err
	}
	sl, ok := mc.(*jpegstructure.SegmentList)
	if !ok || len(sl.Segments()) == 0 || sl.Segments()[0].MarkerId != jpegstructure.MARKER_SOI {
		return nil, errors.New("not a jpeg stream")
	}
	return sl, nil
}

func isJPEGMetadata(s *jpegstructure.Segment) bool {
	switch s.MarkerId {
	case jpegstructure.MARKER_APP1:
		return s.IsExif()
	case jpegstructure.MARKER_APP2:
		return bytes.HasPrefix(s.Data, jpegICCHeader)
	}
	return false
}

func copyJPEGMetadata(src, dst []byte) ([]byte, error) {
	srcList, err := parseJPEG(src)
	if err != nil {
		return nil, fmt.Errorf("read source metadata: %w", err)
	}
	dstList, err := parseJPEG(dst)
	if err != nil {
		return nil, fmt.Errorf("read encoded image: %w", err)
	}

	var meta []*jpegstructure.Segment
	for _, s := range srcList.Segments() {
		if isJPEGMetadata(s) {
			meta = append(meta, s)
		}
	}
	if len(meta) == 0 {
		return dst, nil
	}

	// SOI first, then the metadata, then everything else the encoder wrote.
	dstSegments := dstList.Segments()
	segments := make([]*jpegstructure.Segment, 0, len(dstSegments)+len(meta))
	segments = append(segments, dstSegments[0])
	segments = append(segments, meta...)
	for _, s := range dstSegments[1:] {
		if !isJPEGMetadata(s) {
			segments = append(segments, s)
		}
	}

	var buf bytes.Buffer
	buf.Grow(len(dst) + len(src))
	if err := jpegstructure.NewSegmentList(segments).Write(&buf); err != nil {
		return nil, fmt.Errorf("write jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func parsePNG(data []byte) (*pngstructure.ChunkSlice, error) {
	mc, err := pngstructure.NewPngMediaParser().ParseBytes(data)
	if err != nil {
		return nil, err
	}
	cs, ok := mc.(*pngstructure.ChunkSlice)
	if !ok {
		return nil, errors.New("not a png stream")
	}
	return cs, nil
}

func isPNGMetadata(typ string) bool {
	return typ == "eXIf" || typ == "iCCP"
}

func copyPNGMetadata(src, dst []byte) ([]byte, error) {
	srcChunks, err := parsePNG(src)
	if err != nil {
		return nil, fmt.Errorf("read source metadata: %w", err)
	}
	dstChunks, err := parsePNG(dst)
	if err != nil {
		return nil, fmt.Errorf("read encoded image: %w", err)
	}
	encoded := dstChunks.Chunks()
	if len(encoded) == 0 || encoded[0].Type != "IHDR" {
		return nil, errors.New("png: encoded image does not start with IHDR")
	}

	var meta []*pngstructure.Chunk
	for _, c := range srcChunks.Chunks() {
		if isPNGMetadata(c.Type) {
			meta = append(meta, c)
		}
	}
	if len(meta) == 0 {
		return dst, nil
	}

	// Both chunks must precede PLTE and IDAT, so they go right after IHDR.
	chunks := make([]*pngstructure.Chunk, 0, len(encoded)+len(meta))
	chunks = append(chunks, encoded[0])
	chunks = append(chunks, meta...)
	for _, c := range encoded[1:] {
		if !isPNGMetadata(c.Type) {
			chunks = append(chunks, c)
		}
	}

	var buf bytes.Buffer
	buf.Grow(len(dst) + len(src))
	if err := pngstructure.NewChunkSlice(chunks).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write png: %w", err)
	}
	return buf.Bytes(), nil
}
