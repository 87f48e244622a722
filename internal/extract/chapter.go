package extract

import (
	"errors"
	"strings"
)

// ErrAnchorNotFound means the content region is missing from the page. The
// engine treats it like a transport failure and retries.
var ErrAnchorNotFound = errors.New("content anchor not found")

// DefaultContentPath locates the chapter body.
const DefaultContentPath = "/html/body/div[2]/div[1]/div[3]"

// DefaultNoisePaths are evaluated with the content node as context.
var DefaultNoisePaths = []string{
	"h1",
	"div[1]",
	`//*[@id="txtright"]`,
	"div[4]",
}

// DefaultStripLiterals are removed from the extracted text wherever they occur.
var DefaultStripLiterals = []string{
	"(本章完)",
	"loadAdv(3, 0);",
}

// Options configures a ChapterExtractor. Zero values fall back to the
// defaults above.
type Options struct {
	ContentPath   string
	NoisePaths    []string
	StripLiterals []string
	// StripIndent drops full-width indentation at the start of each line.
	StripIndent bool
}

// ChapterExtractor implements crawler.Extractor for chapter pages.
type ChapterExtractor struct {
	contentPath   string
	noisePaths    []string
	stripLiterals []string
	stripIndent   bool
}

// NewChapterExtractor builds an extractor from opts.
func NewChapterExtractor(opts Options) *ChapterExtractor {
	e := &ChapterExtractor{
		contentPath:   opts.ContentPath,
		noisePaths:    opts.NoisePaths,
		stripLiterals: opts.StripLiterals,
		stripIndent:   opts.StripIndent,
	}
	if e.contentPath == "" {
		e.contentPath = DefaultContentPath
	}
	if e.noisePaths == nil {
		e.noisePaths = append([]string(nil), DefaultNoisePaths...)
	}
	if e.stripLiterals == nil {
		e.stripLiterals = append([]string(nil), DefaultStripLiterals...)
	}
	return e
}

// Extract locates the content region, removes the noise regions in order and
// returns the trimmed text with boilerplate literals removed.
func (e *ChapterExtractor) Extract(markup string) (string, error) {
	doc, err := Parse(markup)
	if err != nil {
		return "", err
	}
	content, err := doc.Find(e.contentPath)
	if err != nil {
		return "", err
	}
	if content == nil {
		return "", ErrAnchorNotFound
	}

	// Each path is evaluated after the previous removal, so positional
	// predicates see the shifted tree.
	for _, path := range e.noisePaths {
		node, err := FindWithin(content, path)
		if err != nil {
			return "", err
		}
		if node == nil || node == content {
			continue
		}
		Remove(node)
	}

	text := strings.TrimSpace(Text(content))
	text = StripLiterals(text, e.stripLiterals)
	if e.stripIndent {
		text = StripIndent(text)
	}
	return text, nil
}

// StripLiterals removes every occurrence of each literal from text.
func StripLiterals(text string, literals []string) string {
	for _, lit := range literals {
		if lit == "" {
			continue
		}
		text = strings.ReplaceAll(text, lit, "")
	}
	return text
}

const indentRunes = "\u2003\u3000\ue5e5"

// StripIndent removes leading em-space, ideographic space and the private-use
// U+E5E5 padding glyph from every line.
func StripIndent(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimLeft(line, indentRunes)
	}
	return strings.Join(lines, "\n")
}

// Raw is an Extractor that returns the decoded markup untouched. Catalog and
// listing fetches use it so the engine's retry loop covers the transport only.
type Raw struct{}

// Extract returns markup as-is.
func (Raw) Extract(markup string) (string, error) {
	return markup, nil
}
