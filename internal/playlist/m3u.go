// Package playlist is the local channel list consulted before the directory:
// M3U parsing plus a SQLite-backed store keyed by playlist order.
package playlist

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/snapetech/iptvguide/internal/httpclient"
	"github.com/snapetech/iptvguide/internal/safeurl"
)

const (
	maxLineSize = 1 << 20 // 1 MiB per line
	maxM3UBytes = 64 << 20
)

// Channel is one playlist entry.
type Channel struct {
	ID        string `json:"id"` // FNV-64a of StreamURL, hex
	Name      string `json:"name"`
	Group     string `json:"group,omitempty"`
	LogoURL   string `json:"logo_url,omitempty"`
	StreamURL string `json:"stream_url"`
	TVGID     string `json:"tvg_id,omitempty"`
}

// ParseM3U reads #EXTINF entries. The name is tvg-name, else the text after the
// last comma. The stream URL is the next line that is neither blank nor a comment.
func ParseM3U(r io.Reader) ([]Channel, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineSize)
	var out []Channel
	var pending *Channel
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXTINF:") {
			ch := channelFromEXTINF(line)
			pending = &ch
			continue
		}
		if strings.HasPrefix(line, "#") || pending == nil {
			continue
		}
		pending.StreamURL = line
		pending.ID = StreamID(line)
		out = append(out, *pending)
		pending = nil
	}
	return out, sc.Err()
}

func channelFromEXTINF(line string) Channel {
	name := attrFromEXTINF(line, "tvg-name")
	if name == "" {
		if i := strings.LastIndex(line, ","); i >= 0 {
			name = strings.TrimSpace(line[i+1:])
		}
	}
	return Channel{
		Name:    name,
		Group:   attrFromEXTINF(line, "group-title"),
		LogoURL: attrFromEXTINF(line, "tvg-logo"),
		TVGID:   attrFromEXTINF(line, "tvg-id"),
	}
}

// attrFromEXTINF returns key="value" from an EXTINF line, or "".
func attrFromEXTINF(extinf, key string) string {
	prefix := key + `="`
	i := strings.Index(extinf, prefix)
	if i < 0 {
		return ""
	}
	i += len(prefix)
	j := strings.IndexByte(extinf[i:], '"')
	if j < 0 {
		return ""
	}
	return extinf[i : i+j]
}

// StreamID is the stable channel id for a stream URL.
func StreamID(streamURL string) string {
	h := fnv.New64a()
	_, _ = io.WriteString(h, streamURL)
	return fmt.Sprintf("%016x", h.Sum64())
}

// FetchM3U loads a playlist from an http(s) URL or a local file path.
func FetchM3U(ctx context.Context, client *http.Client, src string) ([]Channel, error) {
	if safeurl.IsHTTPOrHTTPS(src) {
		body, err := httpclient.Get(ctx, client, src, maxM3UBytes)
		if err != nil {
			return nil, fmt.Errorf("fetch playlist %s: %w", safeurl.Redact(src), err)
		}
		return ParseM3U(bytes.NewReader(body))
	}
	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseM3U(f)
}
