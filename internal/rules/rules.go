// Package rules decides which files of a tree get watermarked and which are
// copied through untouched.
package rules

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/unicode/norm"
)

// Class is the outcome of classifying a path.
type Class int

const (
	Excluded      Class = iota // Copied verbatim
	Watermarkable              // Decoded, resized and overlaid
)

func (c Class) String() string {
	switch c {
	case Watermarkable:
		return "watermarkable"
	default:
		return "excluded"
	}
}

// MarshalText renders the class by name in JSON and YAML reports.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Reason explains a classification decision.
type Reason string

const (
	ReasonImage           Reason = "image"
	ReasonExcludedDir     Reason = "excluded dir"
	ReasonExcludedFile    Reason = "excluded file"
	ReasonExcludedPattern Reason = "excluded pattern"
	ReasonNoExtension     Reason = "no extension"
	ReasonUnsupportedExt  Reason = "unsupported extension"
	ReasonInvalidPath     Reason = "invalid path"
)

// Rules select which files are watermarked. Exclusions always win over
// Extensions.
type Rules struct {
	// Extensions treated as images, e.g. "jpg" or ".PNG". Case-insensitive.
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
	// ExcludeDirs excludes every file below a directory with one of these names,
	// at any depth: ".hidden" excludes "a/.hidden/pic.jpg". A name with slashes
	// matches whole components in sequence: "a/b" excludes "a/b/x.jpg" and
	// "y/a/b/c/x.jpg" but not "a/bc/x.jpg".
	ExcludeDirs []string `mapstructure:"exclude-dirs" yaml:"exclude-dirs"`
	// ExcludeFiles excludes files whose base name starts with one of these
	// prefixes: "back" excludes "background.png".
	ExcludeFiles []string `mapstructure:"exclude-files" yaml:"exclude-files"`
	// ExcludePatterns are globs ("*.thumb.jpg", "raw/*", "**/drafts/*",
	// "*.{raw,cr2}", "cache/") or, without glob metacharacters, substrings of
	// the path. A glob without a slash matches the base name, any other glob
	// the whole relative path.
	ExcludePatterns []string `mapstructure:"exclude-patterns" yaml:"exclude-patterns"`
}

// DefaultRules returns the rules filigram ships with.
func DefaultRules() Rules {
	return Rules{
		Extensions:   []string{"jpg", "jpeg", "png", "bmp", "gif"},
		ExcludeDirs:  []string{".hidden"},
		ExcludeFiles: []string{"background"},
	}
}

// Classifier is a compiled, immutable set of Rules. It is safe for
// concurrent use.
type Classifier struct {
	extensions   map[string]struct{}
	excludeDirs  []string
	excludeFiles []string
	patterns     []pattern
}

type patternKind int

const (
	patternSubstring patternKind = iota
	patternBase                  // glob against the base name
	patternPath                  // glob against the whole relative path
	patternDir                   // dir/
)

type pattern struct {
	kind patternKind
	expr string
}

// NewClassifier validates and compiles rules.
func NewClassifier(r Rules) (*Classifier, error) {
	c := &Classifier{extensions: make(map[string]struct{}, len(r.Extensions))}

	for _, ext := range r.Extensions {
		ext = normalizeExt(ext)
		if ext == "" {
			continue
		}
		c.extensions[ext] = struct{}{}
	}
	for _, d := range r.ExcludeDirs {
		if d = strings.Trim(norm.NFC.String(filepath.ToSlash(d)), "/"); d != "" {
			c.excludeDirs = append(c.excludeDirs, d)
		}
	}
	for _, f := range r.ExcludeFiles {
		if f = norm.NFC.String(f); f != "" {
			c.excludeFiles = append(c.excludeFiles, f)
		}
	}
	for _, raw := range r.ExcludePatterns {
		p, err := compilePattern(raw)
		if err != nil {
			return nil, err
		}
		if p.expr != "" {
			c.patterns = append(c.patterns, p)
		}
	}
	return c, nil
}

func compilePattern(raw string) (pattern, error) {
	expr := norm.NFC.String(filepath.ToSlash(strings.TrimSpace(raw)))

	if strings.HasSuffix(expr, "/") {
		return pattern{kind: patternDir, expr: strings.Trim(expr, "/")}, nil
	}
	if !strings.ContainsAny(expr, "*?[{") {
		return pattern{kind: patternSubstring, expr: expr}, nil
	}
	if !doublestar.ValidatePattern(expr) {
		return pattern{}, fmt.Errorf("invalid exclude pattern %q: %w", raw, doublestar.ErrBadPattern)
	}

	p := pattern{kind: patternBase, expr: expr}
	if strings.Contains(expr, "/") {
		p.kind = patternPath
	}
	return p, nil
}

// Classify returns the class of a path relative to the source root.
func (c *Classifier) Classify(rel string) Class {
	class, _ := c.Explain(rel)
	return class
}

// Explain is Classify plus the rule that decided it.
func (c *Classifier) Explain(rel string) (Class, Reason) {
	rel = cleanRel(rel)
	if rel == "" {
		return Excluded, ReasonInvalidPath
	}

	base := path.Base(rel)
	dir := path.Dir(rel)

	if dir != "." {
		components := "/" + dir + "/"
		for _, excluded := range c.excludeDirs {
			if strings.Contains(components, "/"+excluded+"/") {
				return Excluded, ReasonExcludedDir
			}
		}
	}

	for _, prefix := range c.excludeFiles {
		if strings.HasPrefix(base, prefix) {
			return Excluded, ReasonExcludedFile
		}
	}

	for _, p := range c.patterns {
		if p.matches(rel, base) {
			return Excluded, ReasonExcludedPattern
		}
	}

	ext := path.Ext(base)
	if ext == "" || ext == base {
		return Excluded, ReasonNoExtension
	}
	if _, ok := c.extensions[normalizeExt(ext)]; !ok {
		return Excluded, ReasonUnsupportedExt
	}
	return Watermarkable, ReasonImage
}

func (p pattern) matches(rel, base string) bool {
	switch p.kind {
	case patternSubstring:
		return strings.Contains(rel, p.expr)
	case patternBase:
		return globMatch(p.expr, base)
	case patternPath:
		return globMatch(p.expr, rel)
	case patternDir:
		return strings.HasPrefix(rel, p.expr+"/") || strings.Contains(rel, "/"+p.expr+"/")
	}
	return false
}

func globMatch(expr, name string) bool {
	matched, err := doublestar.Match(expr, name)
	return err == nil && matched
}

// cleanRel turns a relative path into NFC, slash-separated form without a
// leading "./".
func cleanRel(rel string) string {
	rel = norm.NFC.String(filepath.ToSlash(rel))
	rel = path.Clean(rel)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return ""
	}
	return rel
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(norm.NFC.String(ext)), "."))
}
