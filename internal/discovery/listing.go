package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/JakeFAU/chapter-crawler/internal/crawler"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// DefaultPageDelay is the pause between two listing pages.
const DefaultPageDelay = 3 * time.Second

// PageRange is an inclusive range of listing page numbers.
type PageRange struct {
	Start int
	End   int
}

// Validate rejects empty or negative ranges.
func (r PageRange) Validate() error {
	if r.Start < 1 {
		return fmt.Errorf("listing start page must be >= 1, got %d", r.Start)
	}
	if r.End < r.Start {
		return fmt.Errorf("listing end page %d is before start page %d", r.End, r.Start)
	}
	return nil
}

// BookIDSet is an unordered, deduplicated collection of book IDs.
type BookIDSet map[string]struct{}

// Add inserts id and reports whether it was new.
func (s BookIDSet) Add(id string) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Sorted returns the IDs in lexical order for stable output.
func (s BookIDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ListingConfig selects which listing pages to walk.
type ListingConfig struct {
	Kind      string
	Class     int
	PageDelay time.Duration
	// OnPage, when set, is called after every page with its scan error.
	OnPage func(page int, err error)
}

// Listing collects book IDs from paginated listing pages. A page that fails
// to load or parse is logged and skipped.
type Listing struct {
	fetcher crawler.Fetcher
	decoder crawler.Decoder
	pauser  crawler.Pauser
	site    crawler.Site
	cfg     ListingConfig
	logger  *zap.Logger
}

// NewListing constructs a Listing.
func NewListing(
	fetcher crawler.Fetcher,
	decoder crawler.Decoder,
	pauser crawler.Pauser,
	site crawler.Site,
	cfg ListingConfig,
	logger *zap.Logger,
) *Listing {
	if cfg.Kind == "" {
		cfg.Kind = "class"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listing{
		fetcher: fetcher,
		decoder: decoder,
		pauser:  pauser,
		site:    site,
		cfg:     cfg,
		logger:  logger,
	}
}

// Discover visits every page in pages. On cancellation it returns the IDs
// gathered so far together with ctx.Err().
func (l *Listing) Discover(ctx context.Context, pages PageRange) (BookIDSet, error) {
	ids := make(BookIDSet)
	if err := pages.Validate(); err != nil {
		return ids, err
	}

	for page := pages.Start; page <= pages.End; page++ {
		url := l.site.ListingURL(l.cfg.Kind, l.cfg.Class, page)
		added, err := l.scanPage(ctx, url, ids)
		if l.cfg.OnPage != nil {
			l.cfg.OnPage(page, err)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ids, ctxErr
			}
			l.logger.Warn("listing page failed; skipping",
				zap.String("url", url),
				zap.Int("page", page),
				zap.Error(err),
			)
		} else {
			l.logger.Info("listing page scanned",
				zap.String("url", url),
				zap.Int("page", page),
				zap.Int("new_ids", added),
				zap.Int("total_ids", len(ids)),
			)
		}

		if page < pages.End && l.cfg.PageDelay > 0 {
			if err := l.pauser.Pause(ctx, l.cfg.PageDelay); err != nil {
				return ids, err
			}
		}
	}
	return ids, nil
}

func (l *Listing) scanPage(ctx context.Context, url string, ids BookIDSet) (int, error) {
	resp, err := l.fetcher.Fetch(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &crawler.StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	markup, err := l.decoder.Decode(resp.Body)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(markup) == "" {
		return 0, crawler.ErrEmptyBody
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return 0, fmt.Errorf("parse listing: %w", err)
	}

	added := 0
	doc.Find("li > a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if id, ok := BookIDFromURL(href); ok && ids.Add(id) {
			added++
		}
	})
	return added, nil
}

// ErrNoBookID is returned by ResolveBookID for input that is neither an ID
// nor a /book/<id> URL.
var ErrNoBookID = errors.New("no book id in input")

// ResolveBookID accepts either a bare numeric ID or a catalog URL.
func ResolveBookID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input != "" && strings.Trim(input, "0123456789") == "" {
		return input, nil
	}
	if id, ok := BookIDFromURL(input); ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: %q", ErrNoBookID, input)
}
