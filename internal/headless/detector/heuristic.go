// Package detector decides when a plain HTTP response needs a real browser.
package detector

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/JakeFAU/chapter-crawler/internal/crawler"
)

// DefaultBodyLengthThreshold is the size below which a script-heavy page is
// treated as a stub.
const DefaultBodyLengthThreshold = 2048

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a new detector.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = DefaultBodyLengthThreshold
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

// challengeMarkers appear on bot-check interstitials. They are ASCII, so the
// raw body can be searched before it is decoded.
var challengeMarkers = [][]byte{
	[]byte("just a moment"),
	[]byte("cf-chl"),
	[]byte("cf_chl_opt"),
	[]byte("challenge-platform"),
	[]byte("cf-browser-verification"),
}

// ShouldPromote reports whether resp looks like a challenge or an empty
// script shell that a browser session would get past.
func (h *Heuristic) ShouldPromote(resp crawler.FetchResponse) bool {
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusServiceUnavailable:
		return hasChallengeMarker(resp.Body)
	default:
		return false
	}
	body := resp.Body
	if len(body) == 0 {
		return true
	}
	if hasChallengeMarker(body) {
		return true
	}
	return len(body) < h.BodyLengthThreshold && scriptDensityHigh(body)
}

func hasChallengeMarker(body []byte) bool {
	lower := bytes.ToLower(body)
	for _, marker := range challengeMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	covered := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel

		tagEnd := strings.IndexByte(lower[start:], '>')
		if tagEnd == -1 {
			// Unterminated tag: the rest of the page is script.
			covered += total - start
			break
		}
		contentStart := start + tagEnd + 1

		next := total
		if end := strings.Index(lower[contentStart:], closeTag); end != -1 {
			next = contentStart + end + len(closeTag)
		}
		covered += next - start
		pos = next
	}
	return covered*100/total >= 25
}
