package discovery

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/JakeFAU/chapter-crawler/internal/crawler"
	"github.com/JakeFAU/chapter-crawler/internal/extract"
)

// ErrCatalogAnchorMissing is a diagnostic: the catalog list was not on the
// page. Discover still returns an empty, non-nil slice alongside it.
var ErrCatalogAnchorMissing = errors.New("catalog anchor not found")

const (
	defaultCatalogPath = `//*[@id="catalog"]/ul`
	defaultItemPath    = `.//li`
)

var (
	chapterIDPattern = regexp.MustCompile(`/(\d+)/?$`)
	bookIDPattern    = regexp.MustCompile(`/book/(\d+)`)
)

// Catalog parses a book's chapter index.
type Catalog struct {
	listPath string
	itemPath string
}

// NewCatalog returns a Catalog using the default list and item paths.
func NewCatalog() *Catalog {
	return &Catalog{listPath: defaultCatalogPath, itemPath: defaultItemPath}
}

// Discover returns the chapter refs in ascending data-num order. Items whose
// link has no trailing numeric ID are dropped; duplicates are kept. A
// data-num that does not parse sorts as 0.
func (c *Catalog) Discover(markup string) ([]crawler.ChapterRef, error) {
	refs := make([]crawler.ChapterRef, 0)

	doc, err := extract.Parse(markup)
	if err != nil {
		return refs, err
	}
	list, err := doc.Find(c.listPath)
	if err != nil {
		return refs, err
	}
	if list == nil {
		return refs, ErrCatalogAnchorMissing
	}
	items, err := extract.FindAllWithin(list, c.itemPath)
	if err != nil {
		return refs, err
	}

	for _, li := range items {
		link, err := extract.FindWithin(li, ".//a")
		if err != nil {
			return refs, err
		}
		id, ok := ChapterIDFromURL(extract.Attr(link, "href"))
		if !ok {
			continue
		}
		num, _ := strconv.Atoi(strings.TrimSpace(extract.Attr(li, "data-num")))
		refs = append(refs, crawler.ChapterRef{Num: num, ID: id})
	}

	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Num < refs[j].Num
	})
	return refs, nil
}

// ChapterIDFromURL returns the trailing digit run of a chapter link.
func ChapterIDFromURL(href string) (string, bool) {
	m := chapterIDPattern.FindStringSubmatch(strings.TrimSpace(href))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// BookIDFromURL extracts the numeric ID from a /book/<id> link.
func BookIDFromURL(href string) (string, bool) {
	m := bookIDPattern.FindStringSubmatch(href)
	if m == nil {
		return "", false
	}
	return m[1], true
}
