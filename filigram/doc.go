// Spreading a tree
//
// Spread walks the source tree, recreates every directory below the
// destination and then processes the files on a pool of workers:
//
//	summary, err := filigram.Spread(ctx, "photos", "published",
//		filigram.DefaultSpec(), filigram.DefaultRules(), filigram.Options{})
//	if err != nil {
//		return err
//	}
//	for _, f := range summary.Failures {
//		fmt.Printf("%s: %s: %s\n", f.Path, f.Kind, f.Error)
//	}
//
// Watermarked images are resized to CanvasSize x CanvasSize, the overlay is
// composited on top and the result is encoded in the format of the file
// extension. Everything else is copied byte for byte.
//
// Custom watermark
//
//	spec := filigram.DefaultSpec()
//	spec.Text = "© Example"
//	spec.Color, _ = filigram.ParseColor("#ffffff80")
//	spec.Angle = 0
//	spec.Position = image.Pt(10, 10)
//
// Custom rules
//
//	rules := filigram.Rules{
//		Extensions:      []string{"jpg", "png"},
//		ExcludeDirs:     []string{"drafts"},
//		ExcludeFiles:    []string{"thumb_"},
//		ExcludePatterns: []string{"**/raw/*", "*.bak"},
//	}
//
// Progress and events
//
//	opts := filigram.Options{
//		Workers: 8,
//		Progress: func(s filigram.Stats) {
//			fmt.Printf("%d files, %.2f MB/s\n", s.FilesProcessed, s.SpeedMBPerSec)
//		},
//		OnEvent: func(e filigram.Event) {
//			fmt.Println(e.Outcome, e.Path)
//		},
//	}

package filigram
