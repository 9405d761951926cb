package iptvorg

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/snapetech/iptvguide/internal/httpclient"
)

const (
	DefaultBaseURL = "https://iptv-org.github.io/api"
	DefaultTimeout = 30 * time.Second

	// channels.json is a few tens of MB; this only guards against runaway bodies.
	maxIndexBytes = 256 << 20
)

// Client fetches channels.json and guides.json from BaseURL.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Timeout time.Duration // per request; 0 uses DefaultTimeout
}

// Fetch downloads channels then guides. Both must return HTTP 200 and decode.
func (c *Client) Fetch(ctx context.Context) ([]Channel, []Guide, error) {
	var channels []Channel
	if err := c.getJSON(ctx, "channels.json", &channels); err != nil {
		return nil, nil, err
	}
	var guides []Guide
	if err := c.getJSON(ctx, "guides.json", &guides); err != nil {
		return nil, nil, err
	}
	return channels, guides, nil
}

func (c *Client) getJSON(ctx context.Context, name string, v any) error {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := strings.TrimSuffix(base, "/") + "/" + name
	body, err := httpclient.Get(ctx, c.HTTP, u, maxIndexBytes)
	if err != nil {
		return fmt.Errorf("iptv-org %s: %w", name, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("iptv-org %s parse: %w", name, err)
	}
	return nil
}
