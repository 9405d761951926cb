package guide

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/snapetech/iptvguide/internal/httpclient"
)

// fetchGuide downloads a country guide and returns its XML text. A body over
// maxBytes (before or after gunzip) yields nil text and tooLarge set.
func (s *Service) fetchGuide(ctx context.Context, url string) (text []byte, tooLarge bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.guideTimeout)
	defer cancel()

	body, err := httpclient.Get(ctx, s.client, url, s.maxGuideBytes)
	if errors.Is(err, httpclient.ErrTooLarge) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, &TransportError{URL: url, Err: err}
	}
	body, tooLarge = gunzipIfFramed(body, s.maxGuideBytes)
	if tooLarge {
		return nil, true, nil
	}
	if err := checkText(body); err != nil {
		s.log.Warn("guide body dropped", "url", url, "err", err)
		return nil, false, nil
	}
	return body, false, nil
}

// gunzipIfFramed inflates data when it starts with the gzip magic bytes. A
// corrupt stream falls back to the raw bytes.
func gunzipIfFramed(data []byte, maxBytes int64) ([]byte, bool) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, false
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return data, false
	}
	defer zr.Close()
	var r io.Reader = zr
	if maxBytes > 0 {
		r = io.LimitReader(zr, maxBytes+1)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return data, false
	}
	if maxBytes > 0 && int64(len(out)) > maxBytes {
		return nil, true
	}
	return out, false
}

var xmlEncodingRe = regexp.MustCompile(`^\s*<\?xml[^>]*\bencoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)

// checkText rejects bodies that are not UTF-8, unless the XML declaration names
// another encoding for the parser to convert.
func checkText(data []byte) error {
	if utf8.Valid(data) {
		return nil
	}
	head := data
	if len(head) > 256 {
		head = head[:256]
	}
	if m := xmlEncodingRe.FindSubmatch(head); m != nil {
		enc := strings.ToLower(string(m[1]))
		if enc != "utf-8" && enc != "utf8" {
			return nil
		}
	}
	return fmt.Errorf("%w (%d bytes)", ErrDecode, len(data))
}
