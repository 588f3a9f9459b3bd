package rules

import (
	"path/filepath"
	"testing"
)

func TestClassifyDefaultRules(t *testing.T) {
	c, err := NewClassifier(DefaultRules())
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}

	testCases := []struct {
		path   string
		class  Class
		reason Reason
	}{
		{"a.jpg", Watermarkable, ReasonImage},
		{"A.JPG", Watermarkable, ReasonImage},
		{"sub/c.png", Watermarkable, ReasonImage},
		{"deep/er/still/pic.jpeg", Watermarkable, ReasonImage},
		{"anim.gif", Watermarkable, ReasonImage},
		{"b.txt", Excluded, ReasonUnsupportedExt},
		{"photo.webp", Excluded, ReasonUnsupportedExt},
		{"README", Excluded, ReasonNoExtension},
		{".jpg", Excluded, ReasonNoExtension},
		{"sub/.hidden/pic.jpg", Excluded, ReasonExcludedDir},
		{".hidden/pic.jpg", Excluded, ReasonExcludedDir},
		{"background.png", Excluded, ReasonExcludedFile},
		{"sub/background-blue.jpg", Excluded, ReasonExcludedFile},
		{"my-background.png", Watermarkable, ReasonImage},
		{"./a.jpg", Watermarkable, ReasonImage},
		{"", Excluded, ReasonInvalidPath},
		{"../escape.jpg", Excluded, ReasonInvalidPath},
	}

	for _, tc := range testCases {
		class, reason := c.Explain(tc.path)
		if class != tc.class || reason != tc.reason {
			t.Errorf("Explain(%q) = (%v, %q), expected (%v, %q)", tc.path, class, reason, tc.class, tc.reason)
		}
		if got := c.Classify(tc.path); got != tc.class {
			t.Errorf("Classify(%q) = %v, expected %v", tc.path, got, tc.class)
		}
	}
}

func TestExclusionTakesPrecedence(t *testing.T) {
	c, err := NewClassifier(Rules{
		Extensions:      []string{"jpg"},
		ExcludePatterns: []string{"*.jpg"},
	})
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}

	if class, reason := c.Explain("a.jpg"); class != Excluded || reason != ReasonExcludedPattern {
		t.Errorf("Expected excluded pattern to win, got (%v, %q)", class, reason)
	}
}

func TestExcludePatterns(t *testing.T) {
	c, err := NewClassifier(Rules{
		Extensions:      []string{".JPG", "png"},
		ExcludePatterns: []string{"*.thumb.jpg", "raw/*", "**/drafts/*", "cache/", "private", "*.{bak,tmp}", "export/**"},
	})
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}

	testCases := []struct {
		path  string
		class Class
	}{
		{"x.thumb.jpg", Excluded},
		{"sub/x.thumb.jpg", Excluded},
		{"raw/a.jpg", Excluded},
		{"other/raw/a.jpg", Watermarkable},
		{"drafts/a.png", Excluded},
		{"2024/drafts/a.png", Excluded},
		{"2024/drafts/nested/a.png", Watermarkable},
		{"cache/a.png", Excluded},
		{"site/cache/a.png", Excluded},
		{"cached/a.png", Watermarkable},
		{"my-private-shots/a.png", Excluded},
		{"public/a.png", Watermarkable},
		{"x.bak", Excluded},
		{"deep/x.tmp", Excluded},
		{"x.bak.png", Watermarkable},
		{"export/a.png", Excluded},
		{"export/2024/06/a.png", Excluded},
		{"exports/a.png", Watermarkable},
	}

	for _, tc := range testCases {
		if got := c.Classify(tc.path); got != tc.class {
			t.Errorf("Classify(%q) = %v, expected %v", tc.path, got, tc.class)
		}
	}
}

func TestClassifyNormalizesUnicode(t *testing.T) {
	// "é" as a single code point (NFC) and as "e" + combining acute (NFD).
	nfc := "caf\u00e9"
	nfd := "cafe\u0301"

	c, err := NewClassifier(Rules{
		Extensions:  []string{"png"},
		ExcludeDirs: []string{nfc},
	})
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}

	if got := c.Classify(nfd + "/menu.png"); got != Excluded {
		t.Errorf("Expected NFD directory name to match NFC rule, got %v", got)
	}
}

func TestClassifyOSSeparators(t *testing.T) {
	c, err := NewClassifier(DefaultRules())
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}

	rel := filepath.Join("sub", ".hidden", "pic.jpg")
	if got := c.Classify(rel); got != Excluded {
		t.Errorf("Classify(%q) = %v, expected excluded", rel, got)
	}
}

func TestNewClassifierRejectsBadPattern(t *testing.T) {
	for _, p := range []string{"[a-", "*.{jpg,png"} {
		if _, err := NewClassifier(Rules{ExcludePatterns: []string{p}}); err == nil {
			t.Errorf("Expected error for malformed glob %q, got nil", p)
		}
	}
}

func TestExcludeDirPaths(t *testing.T) {
	c, err := NewClassifier(Rules{
		Extensions:  []string{"jpg"},
		ExcludeDirs: []string{"a/b", "/drafts/"},
	})
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}

	testCases := []struct {
		path   string
		class  Class
		reason Reason
	}{
		{"a/b/x.jpg", Excluded, ReasonExcludedDir},
		{"a/b/c/x.jpg", Excluded, ReasonExcludedDir},
		{"y/a/b/x.jpg", Excluded, ReasonExcludedDir},
		{"a/bc/x.jpg", Watermarkable, ReasonImage},
		{"a/x.jpg", Watermarkable, ReasonImage},
		{"b/a/x.jpg", Watermarkable, ReasonImage},
		{"drafts/x.jpg", Excluded, ReasonExcludedDir},
		{"a/b.jpg", Watermarkable, ReasonImage},
	}
	for _, tc := range testCases {
		if class, reason := c.Explain(tc.path); class != tc.class || reason != tc.reason {
			t.Errorf("Explain(%q) = (%v, %q), expected (%v, %q)", tc.path, class, reason, tc.class, tc.reason)
		}
	}
}

func TestEmptyRulesExcludeEverything(t *testing.T) {
	c, err := NewClassifier(Rules{})
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}
	for _, p := range []string{"a.jpg", "b.png", "c"} {
		if got := c.Classify(p); got != Excluded {
			t.Errorf("Classify(%q) = %v, expected excluded", p, got)
		}
	}
}

func BenchmarkClassify(b *testing.B) {
	c, err := NewClassifier(Rules{
		Extensions:      []string{"jpg", "jpeg", "png"},
		ExcludeDirs:     []string{".hidden", "node_modules"},
		ExcludeFiles:    []string{"background"},
		ExcludePatterns: []string{"**/drafts/*", "*.thumb.jpg"},
	})
	if err != nil {
		b.Fatalf("NewClassifier failed: %v", err)
	}
	paths := []string{
		"a.jpg",
		"very/deep/path/to/some/file.png",
		"2024/drafts/x.jpg",
		"notes.txt",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, p := range paths {
			_ = c.Classify(p)
		}
	}
}
