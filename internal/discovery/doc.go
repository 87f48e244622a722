// Package discovery finds what to crawl: the ordered chapter list of one book
// from its catalog page, and book IDs from paginated listing pages.
package discovery
