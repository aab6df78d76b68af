// Package linkmeta enriches shared links with preview metadata. A durable
// job queue feeds a bounded worker pool; each job is handled by the first
// provider strategy whose URL pattern matches.
package linkmeta

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

var ErrNoProvider = errors.New("no provider can handle this URL")

// Metadata is the preview payload stored on the link and pushed to clients.
type Metadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	SiteName    string `json:"siteName,omitempty"`
	Provider    string `json:"provider"`
	URL         string `json:"url"`
}

// Provider is one extraction strategy. Providers are consulted in order;
// the first whose CanHandle matches wins.
type Provider interface {
	Name() string
	CanHandle(u *url.URL) bool

	// RequiresFetch distinguishes strategies that hit the network from pure
	// URL parsing.
	RequiresFetch() bool

	Extract(ctx context.Context, client *http.Client, u *url.URL) (*Metadata, error)
}

// DefaultProviders returns the ordered strategy table. Specific providers
// come first; OpenGraph is the catch-all and must stay last.
func DefaultProviders() []Provider {
	return []Provider{
		&BandcampProvider{},
		&YouTubeProvider{},
		&ImageProvider{},
		&OpenGraphProvider{},
	}
}

// SelectProvider picks the strategy for a URL, honoring a stored hint when
// it still matches (the hint is advisory: a rename or pattern change between
// enqueue and claim must not strand the job).
func SelectProvider(providers []Provider, hint string, u *url.URL) (Provider, error) {
	if hint != "" {
		for _, p := range providers {
			if p.Name() == hint && p.CanHandle(u) {
				return p, nil
			}
		}
	}
	for _, p := range providers {
		if p.CanHandle(u) {
			return p, nil
		}
	}
	return nil, ErrNoProvider
}

// HintFor records which provider would handle the URL at enqueue time.
func HintFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	for _, p := range DefaultProviders() {
		if p.CanHandle(u) {
			return p.Name()
		}
	}
	return ""
}
