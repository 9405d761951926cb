package httpclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func TestGet_plain(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	got, err := Get(context.Background(), srv.Client(), srv.URL, 0)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Errorf("body = %q", got)
	}
	if ua != UserAgent {
		t.Errorf("User-Agent = %q, want %q", ua, UserAgent)
	}
}

func TestGet_non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Get(context.Background(), srv.Client(), srv.URL, 0)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.Code != http.StatusNotFound {
		t.Errorf("code = %d", se.Code)
	}
}

func TestGet_contentEncodings(t *testing.T) {
	payload := strings.Repeat("<tv></tv>", 100)

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write([]byte(payload))
	zw.Close()

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	bw.Write([]byte(payload))
	bw.Close()

	bodies := map[string][]byte{"gzip": gz.Bytes(), "br": br.Bytes()}
	for enc, body := range bodies {
		t.Run(enc, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !strings.Contains(r.Header.Get("Accept-Encoding"), enc) {
					t.Errorf("Accept-Encoding = %q", r.Header.Get("Accept-Encoding"))
				}
				w.Header().Set("Content-Encoding", enc)
				w.Write(body)
			}))
			defer srv.Close()

			got, err := Get(context.Background(), srv.Client(), srv.URL, 0)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != payload {
				t.Errorf("decoded %d bytes, want %d", len(got), len(payload))
			}
		})
	}
}

func TestReadBody_cap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	if _, err := Get(context.Background(), srv.Client(), srv.URL, 10); err != nil {
		t.Errorf("exactly at cap: %v", err)
	}
	if _, err := Get(context.Background(), srv.Client(), srv.URL, 9); !errors.Is(err, ErrTooLarge) {
		t.Errorf("over cap: err = %v, want ErrTooLarge", err)
	}
}

func TestHostSemaphore_limitsConcurrency(t *testing.T) {
	sem := NewHostSemaphore(2)
	var inFlight, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := sem.Acquire(context.Background(), "https://iptv-epg.org/files/x.xml")
			if err != nil {
				t.Error(err)
				return
			}
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			release()
		}()
	}
	wg.Wait()
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestHostSemaphore_acquireHonorsContext(t *testing.T) {
	sem := NewHostSemaphore(1)
	release, err := sem.Acquire(context.Background(), "https://a.example")
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := sem.Acquire(ctx, "https://a.example/other"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
	// A different host has its own slots.
	r2, err := sem.Acquire(context.Background(), "https://b.example")
	if err != nil {
		t.Fatal(err)
	}
	r2()
}

func TestUpstream_client(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	up := NewUpstream(0, 2)
	client := up.Client(5 * time.Second)
	for i := 0; i < 3; i++ {
		if _, err := Get(context.Background(), client, srv.URL, 0); err != nil {
			t.Fatal(err)
		}
	}
	if hits != 3 {
		t.Errorf("hits = %d, want 3", hits)
	}
}

func TestHostLimiter_waitCanceled(t *testing.T) {
	l := NewHostLimiter(0.001, 1)
	ctx := context.Background()
	if err := l.Wait(ctx, "slow.example"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := l.Wait(ctx, "slow.example"); err == nil {
		t.Error("expected error from canceled wait on exhausted bucket")
	}
}
