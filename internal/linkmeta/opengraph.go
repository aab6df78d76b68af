package linkmeta

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"

	"commune_backend/internal/logger"
)

const fetchUserAgent = "Mozilla/5.0 (compatible; commune-linkbot/1.0)"

// OpenGraphProvider is the catch-all strategy: fetch the page and read its
// OpenGraph tags, falling back to <title> and the meta description.
type OpenGraphProvider struct{}

func (p *OpenGraphProvider) Name() string { return "opengraph" }

func (p *OpenGraphProvider) CanHandle(u *url.URL) bool {
	return u.Scheme == "http" || u.Scheme == "https"
}

func (p *OpenGraphProvider) RequiresFetch() bool { return true }

func (p *OpenGraphProvider) Extract(ctx context.Context, client *http.Client, u *url.URL) (*Metadata, error) {
	doc, err := fetchDocument(ctx, client, u.String())
	if err != nil {
		return nil, err
	}
	meta := parseOpenGraph(doc, u)
	meta.Provider = p.Name()
	return meta, nil
}

// BandcampProvider scopes OpenGraph extraction to bandcamp hosts so the page
// gets a provider-specific label; bandcamp embeds are known to block
// unfamiliar clients, which surfaces as an ordinary fetch failure and retry.
type BandcampProvider struct{}

func (p *BandcampProvider) Name() string { return "bandcamp" }

func (p *BandcampProvider) CanHandle(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	return host == "bandcamp.com" || strings.HasSuffix(host, ".bandcamp.com")
}

func (p *BandcampProvider) RequiresFetch() bool { return true }

func (p *BandcampProvider) Extract(ctx context.Context, client *http.Client, u *url.URL) (*Metadata, error) {
	doc, err := fetchDocument(ctx, client, u.String())
	if err != nil {
		return nil, err
	}
	meta := parseOpenGraph(doc, u)
	meta.Provider = p.Name()
	if meta.SiteName == "" {
		meta.SiteName = "Bandcamp"
	}
	return meta, nil
}

// ImageProvider is a pure strategy: a direct image URL needs no fetch, the
// URL itself is the preview.
type ImageProvider struct{}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

func (p *ImageProvider) Name() string { return "image" }

func (p *ImageProvider) CanHandle(u *url.URL) bool {
	path := strings.ToLower(u.Path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func (p *ImageProvider) RequiresFetch() bool { return false }

func (p *ImageProvider) Extract(_ context.Context, _ *http.Client, u *url.URL) (*Metadata, error) {
	segments := strings.Split(u.Path, "/")
	title := segments[len(segments)-1]
	return &Metadata{
		Title:    title,
		ImageURL: u.String(),
		Provider: p.Name(),
		URL:      u.String(),
	}, nil
}

// fetchDocument retrieves a page with bounded retries and parses it.
func fetchDocument(ctx context.Context, client *http.Client, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("User-Agent", fetchUserAgent)
			req.Header.Set("Accept", "text/html,application/xhtml+xml")

			resp, err := client.Do(req)
			if err != nil {
				logger.Debug("Link fetch failed, will retry", "url", pageURL, "error", err)
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			doc, err = goquery.NewDocumentFromReader(resp.Body)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("parse HTML: %w", err))
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func parseOpenGraph(doc *goquery.Document, u *url.URL) *Metadata {
	meta := &Metadata{URL: u.String()}

	meta.Title = metaProperty(doc, "og:title")
	meta.Description = metaProperty(doc, "og:description")
	meta.ImageURL = metaProperty(doc, "og:image")
	meta.SiteName = metaProperty(doc, "og:site_name")

	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if meta.Description == "" {
		if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
			meta.Description = strings.TrimSpace(desc)
		}
	}
	if meta.SiteName == "" {
		meta.SiteName = u.Hostname()
	}
	return meta
}

func metaProperty(doc *goquery.Document, property string) string {
	if content, ok := doc.Find(fmt.Sprintf(`meta[property=%q]`, property)).First().Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}
