package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSiteURLs(t *testing.T) {
	t.Parallel()

	site, err := NewSite("HTTPS://www.69shuba.com:443/")
	require.NoError(t, err)
	require.Equal(t, "https://www.69shuba.com", site.BaseURL())
	require.Equal(t, "https://www.69shuba.com/book/51434/", site.CatalogURL("51434"))
	require.Equal(t, "https://www.69shuba.com/txt/51434/39943182", site.ChapterURL("51434", "39943182"))
	require.Equal(t, "https://www.69shuba.com/ajax_novels/class/4/2.htm", site.ListingURL("class", 4, 2))
}

func TestNewSiteRejectsRelative(t *testing.T) {
	t.Parallel()

	_, err := NewSite("/relative/path")
	require.Error(t, err)
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	got, err := NormalizeURL("HTTP://Example.COM:80/a?b=2&a=1#frag")
	require.NoError(t, err)
	require.Equal(t, "http://example.com/a?a=1&b=2", got)
}
