package detector

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/chapter-crawler/internal/crawler"
)

func TestHeuristicShouldPromote(t *testing.T) {
	t.Parallel()

	longText := "<html><body><p>" + strings.Repeat("正文", 2000) + "</p></body></html>"
	cases := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{name: "empty body", status: http.StatusOK, body: "", want: true},
		{name: "challenge page", status: http.StatusOK, body: `<title>Just a moment...</title>`, want: true},
		{name: "challenge behind 503", status: http.StatusServiceUnavailable,
			body: `<script src="/cdn-cgi/challenge-platform/h/b/orchestrate"></script>`, want: true},
		{name: "plain 503", status: http.StatusServiceUnavailable, body: "busy", want: false},
		{name: "forbidden without marker", status: http.StatusForbidden, body: "denied", want: false},
		{name: "not found", status: http.StatusNotFound, body: "", want: false},
		{name: "script shell", status: http.StatusOK, body: `<html><script>var a=1;</script><p>t</p></html>`, want: true},
		{name: "chapter page", status: http.StatusOK, body: longText, want: false},
	}
	h := NewHeuristic(1000)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			resp := crawler.FetchResponse{StatusCode: tc.status, Body: []byte(tc.body)}
			require.Equal(t, tc.want, h.ShouldPromote(resp))
		})
	}
}

func TestHeuristicLongScriptPageIsKept(t *testing.T) {
	t.Parallel()

	body := "<html><script>x</script>" + strings.Repeat("<p>text</p>", 500) + "</html>"
	h := NewHeuristic(100)
	require.False(t, h.ShouldPromote(crawler.FetchResponse{StatusCode: http.StatusOK, Body: []byte(body)}))
}

func TestNewHeuristicDefaultThreshold(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultBodyLengthThreshold, NewHeuristic(0).BodyLengthThreshold)
}

func TestScriptDensityUnterminatedTag(t *testing.T) {
	t.Parallel()

	require.True(t, scriptDensityHigh([]byte("<p>a</p><script")))
	require.False(t, scriptDensityHigh(nil))
}
