package linkmeta

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, rawURL string) *url.URL {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u
}

func TestSelectProviderFirstMatchWins(t *testing.T) {
	t.Parallel()

	providers := DefaultProviders()
	cases := []struct {
		url  string
		want string
	}{
		{"https://artist.bandcamp.com/album/x", "bandcamp"},
		{"https://bandcamp.com/discover", "bandcamp"},
		{"https://www.youtube.com/watch?v=abc", "youtube"},
		{"https://youtu.be/abc", "youtube"},
		{"https://m.youtube.com/watch?v=abc", "youtube"},
		{"https://example.com/pic.PNG", "image"},
		{"https://example.com/photo.jpeg", "image"},
		{"https://example.com/article", "opengraph"},
		{"http://example.com/", "opengraph"},
	}
	for _, tc := range cases {
		provider, err := SelectProvider(providers, "", mustParse(t, tc.url))
		require.NoError(t, err, tc.url)
		assert.Equal(t, tc.want, provider.Name(), tc.url)
	}
}

func TestSelectProviderRejectsNonHTTP(t *testing.T) {
	t.Parallel()

	_, err := SelectProvider(DefaultProviders(), "", mustParse(t, "ftp://example.com/file"))
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestSelectProviderHonorsValidHint(t *testing.T) {
	t.Parallel()

	// A bandcamp URL also satisfies the opengraph catch-all; the stored hint
	// keeps the specific provider.
	provider, err := SelectProvider(DefaultProviders(), "bandcamp", mustParse(t, "https://artist.bandcamp.com/album/x"))
	require.NoError(t, err)
	assert.Equal(t, "bandcamp", provider.Name())
}

func TestSelectProviderIgnoresStaleHint(t *testing.T) {
	t.Parallel()

	provider, err := SelectProvider(DefaultProviders(), "bandcamp", mustParse(t, "https://www.youtube.com/watch?v=abc"))
	require.NoError(t, err)
	assert.Equal(t, "youtube", provider.Name())
}

func TestHintFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "youtube", HintFor("https://youtu.be/abc"))
	assert.Equal(t, "image", HintFor("https://example.com/a/b/cover.webp"))
	assert.Equal(t, "opengraph", HintFor("https://example.com/post"))
	assert.Equal(t, "", HintFor("not a url at all\x7f://"))
}

func TestImageProviderExtractsWithoutFetch(t *testing.T) {
	t.Parallel()

	provider := &ImageProvider{}
	require.False(t, provider.RequiresFetch())

	meta, err := provider.Extract(context.Background(), nil, mustParse(t, "https://cdn.example.com/albums/cover.jpg"))
	require.NoError(t, err)

	assert.Equal(t, "cover.jpg", meta.Title)
	assert.Equal(t, "https://cdn.example.com/albums/cover.jpg", meta.ImageURL)
	assert.Equal(t, "image", meta.Provider)
}

func TestOpenGraphExtract(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, fetchUserAgent, r.Header.Get("User-Agent"))
		w.Write([]byte(`<html><head>
			<meta property="og:title" content="Night Drive">
			<meta property="og:description" content="A synthwave mix">
			<meta property="og:image" content="https://img.example.com/cover.png">
			<meta property="og:site_name" content="Mixsite">
			<title>fallback title</title>
		</head><body></body></html>`))
	}))
	defer srv.Close()

	provider := &OpenGraphProvider{}
	meta, err := provider.Extract(context.Background(), srv.Client(), mustParse(t, srv.URL))
	require.NoError(t, err)

	assert.Equal(t, "Night Drive", meta.Title)
	assert.Equal(t, "A synthwave mix", meta.Description)
	assert.Equal(t, "https://img.example.com/cover.png", meta.ImageURL)
	assert.Equal(t, "Mixsite", meta.SiteName)
	assert.Equal(t, "opengraph", meta.Provider)
}

func TestOpenGraphFallsBackToHTMLBasics(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><head>
			<title>Plain Page</title>
			<meta name="description" content="no opengraph here">
		</head><body></body></html>`))
	}))
	defer srv.Close()

	provider := &OpenGraphProvider{}
	u := mustParse(t, srv.URL)
	meta, err := provider.Extract(context.Background(), srv.Client(), u)
	require.NoError(t, err)

	assert.Equal(t, "Plain Page", meta.Title)
	assert.Equal(t, "no opengraph here", meta.Description)
	assert.Equal(t, u.Hostname(), meta.SiteName)
}

func TestYouTubeOEmbedUnrecoverableOnMissingVideo(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	// Redirect every request, including the absolute oEmbed endpoint, at the
	// stub server.
	client := &http.Client{Transport: rewriteTransport{target: srv.URL}}

	provider := &YouTubeProvider{}
	_, err := provider.Extract(context.Background(), client, mustParse(t, "https://youtu.be/gone"))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "a 404 must not be retried")
}

type rewriteTransport struct {
	target string
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rewritten, err := url.Parse(t.target + "?" + req.URL.RawQuery)
	if err != nil {
		return nil, err
	}
	req.URL = rewritten
	return http.DefaultTransport.RoundTrip(req)
}
