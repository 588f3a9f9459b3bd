// Package watermark turns decoded images into 500x500 watermarked images.
//
// A Renderer is built once from a Spec and shared by every worker:
//
//	r, err := watermark.NewRenderer(watermark.DefaultSpec())
//	if err != nil {
//		return err
//	}
//	out, err := r.Watermark(data, "photo.jpg")
//
// Sources are stretched to the canvas without preserving their aspect ratio,
// so every output is exactly CanvasSize x CanvasSize. The Go encoders used
// here are deterministic: identical input bytes and Spec produce identical
// output bytes.
package watermark
