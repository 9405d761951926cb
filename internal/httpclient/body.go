package httpclient

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/snapetech/iptvguide/internal/safeurl"
)

// ErrTooLarge is returned when a response body exceeds the caller's cap.
var ErrTooLarge = errors.New("response body exceeds size limit")

// StatusError is a non-200 upstream response. Error() redacts credentials in URL.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", safeurl.Redact(e.URL), e.Code)
}

// Get fetches rawURL and returns the decoded body, capped at maxBytes
// (<= 0 means uncapped). Only HTTP 200 is accepted.
func Get(ctx context.Context, client *http.Client, rawURL string, maxBytes int64) ([]byte, error) {
	if client == nil {
		client = Default()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	// Explicit Accept-Encoding turns off the transport's transparent gzip;
	// ReadBody handles both encodings.
	req.Header.Set("Accept-Encoding", "br, gzip")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	return ReadBody(resp, maxBytes)
}

// ReadBody reads resp.Body, undoing a br or gzip Content-Encoding, and fails
// with ErrTooLarge once more than maxBytes decoded bytes are seen.
func ReadBody(resp *http.Response, maxBytes int64) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	if maxBytes > 0 && encoding == "" && resp.ContentLength > maxBytes {
		return nil, ErrTooLarge
	}
	var r io.Reader = resp.Body
	switch encoding {
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip content-encoding: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}
