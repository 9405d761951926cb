package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/snapetech/iptvguide/internal/httpclient"
	"github.com/snapetech/iptvguide/internal/safeurl"
)

const checkTimeout = 15 * time.Second

// CheckPlaylist verifies the playlist source: GET for http(s), stat for a file path.
func CheckPlaylist(ctx context.Context, client *http.Client, src string) error {
	if src == "" {
		return fmt.Errorf("no playlist configured")
	}
	if !safeurl.IsHTTPOrHTTPS(src) {
		if _, err := os.Stat(src); err != nil {
			return fmt.Errorf("playlist file: %w", err)
		}
		return nil
	}
	// Some providers don't support HEAD; use GET and drop the body.
	if err := get(ctx, client, src); err != nil {
		return fmt.Errorf("playlist %s: %w", safeurl.Redact(src), err)
	}
	return nil
}

// CheckDirectory hits channels.json and guides.json under baseURL and returns the first error or nil.
func CheckDirectory(ctx context.Context, client *http.Client, baseURL string) error {
	base := strings.TrimSuffix(baseURL, "/")
	for _, name := range []string{"/channels.json", "/guides.json"} {
		if err := get(ctx, client, base+name); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// CheckGuide fetches one country guide URL without reading the body.
func CheckGuide(ctx context.Context, client *http.Client, guideURL string) error {
	if err := get(ctx, client, guideURL); err != nil {
		return fmt.Errorf("guide %s: %w", guideURL, err)
	}
	return nil
}

func get(ctx context.Context, client *http.Client, rawURL string) error {
	if client == nil {
		client = httpclient.WithTimeout(checkTimeout)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("unreachable: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}
