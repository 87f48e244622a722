package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// Site builds the catalog, chapter and listing URLs for one host.
type Site struct {
	base string
}

// NewSite validates baseURL and strips trailing slashes.
func NewSite(baseURL string) (Site, error) {
	normalized, err := NormalizeURL(baseURL)
	if err != nil {
		return Site{}, err
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return Site{}, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Site{}, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	return Site{base: strings.TrimRight(normalized, "/")}, nil
}

// BaseURL returns the normalized origin.
func (s Site) BaseURL() string {
	return s.base
}

// CatalogURL is the book's chapter index.
func (s Site) CatalogURL(bookID string) string {
	return fmt.Sprintf("%s/book/%s/", s.base, url.PathEscape(bookID))
}

// ChapterURL is the page holding one chapter's text.
func (s Site) ChapterURL(bookID, chapterID string) string {
	return fmt.Sprintf("%s/txt/%s/%s", s.base, url.PathEscape(bookID), url.PathEscape(chapterID))
}

// ListingURL is one page of a paginated book listing, e.g. kind "class" or "full".
func (s Site) ListingURL(kind string, class, page int) string {
	return fmt.Sprintf("%s/ajax_novels/%s/%d/%d.htm", s.base, url.PathEscape(kind), class, page)
}

// NormalizeURL lowercases the scheme and host, removes default ports and the
// fragment, and sorts query parameters.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}
