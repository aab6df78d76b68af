package linkmeta

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// YouTubeProvider resolves video metadata through YouTube's oEmbed endpoint
// instead of scraping the watch page.
type YouTubeProvider struct{}

const youtubeOEmbedEndpoint = "https://www.youtube.com/oembed"

func (p *YouTubeProvider) Name() string { return "youtube" }

func (p *YouTubeProvider) CanHandle(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	switch host {
	case "youtube.com", "www.youtube.com", "m.youtube.com", "youtu.be":
		return true
	}
	return false
}

func (p *YouTubeProvider) RequiresFetch() bool { return true }

type oembedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ProviderName string `json:"provider_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

func (p *YouTubeProvider) Extract(ctx context.Context, client *http.Client, u *url.URL) (*Metadata, error) {
	endpoint := fmt.Sprintf("%s?url=%s&format=json", youtubeOEmbedEndpoint, url.QueryEscape(u.String()))

	var body oembedResponse
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", fetchUserAgent)

			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			// 404 from oEmbed means the video is gone or private; retrying
			// will not change that.
			if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnauthorized {
				return retry.Unrecoverable(fmt.Errorf("oembed HTTP %d", resp.StatusCode))
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("oembed HTTP %d", resp.StatusCode)
			}
			return json.NewDecoder(resp.Body).Decode(&body)
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

	return &Metadata{
		Title:       body.Title,
		Description: body.AuthorName,
		ImageURL:    body.ThumbnailURL,
		SiteName:    body.ProviderName,
		Provider:    p.Name(),
		URL:         u.String(),
	}, nil
}
