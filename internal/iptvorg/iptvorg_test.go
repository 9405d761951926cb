package iptvorg

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var frChannels = []Channel{
	{ID: "TF1.fr", Name: "TF1", AltNames: []string{"Télévision française 1"}, Country: "FR"},
	{ID: "France2.fr", Name: "France 2", Country: "FR"},
}

func TestIndex_newIsStale(t *testing.T) {
	ix := NewIndex("https://iptv-epg.org/files", 0)
	if !ix.IsStale() {
		t.Error("new index should be stale")
	}
	ix.Replace(frChannels, nil)
	if ix.IsStale() {
		t.Error("index should be fresh after Replace")
	}
}

func TestIndex_staleAfterTTL(t *testing.T) {
	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	ix := NewIndex("", time.Hour)
	ix.now = func() time.Time { return now }
	ix.Replace(frChannels, nil)

	now = now.Add(59 * time.Minute)
	if ix.IsStale() {
		t.Error("stale before TTL elapsed")
	}
	now = now.Add(2 * time.Minute)
	if !ix.IsStale() {
		t.Error("fresh after TTL elapsed")
	}
}

func TestIndex_FindID(t *testing.T) {
	ix := NewIndex("", 0)
	ix.Replace(frChannels, nil)
	tests := []struct {
		name           string
		explicit, disp string
		want           string
		ok             bool
	}{
		{"explicit id", "TF1.fr", "whatever", "TF1.fr", true},
		{"alt name keeps accents", "", "télévision française 1", "TF1.fr", true},
		{"name case-insensitive", "", "FRANCE 2", "France2.fr", true},
		{"unknown explicit falls back to name", "tf1.FR", "TF1", "TF1.fr", true},
		{"no match", "Nope.xx", "Nope", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ix.FindID(tt.explicit, tt.disp)
			if got != tt.want || ok != tt.ok {
				t.Errorf("FindID(%q, %q) = %q, %v; want %q, %v", tt.explicit, tt.disp, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestIndex_FindID_exactIDBeatsName(t *testing.T) {
	ix := NewIndex("", 0)
	ix.Replace([]Channel{
		{ID: "A.fr", Name: "Shared"},
		{ID: "B.fr", Name: "Other"},
	}, nil)
	// "Other" names B.fr, but the explicit id A.fr is an exact key.
	if got, _ := ix.FindID("A.fr", "Other"); got != "A.fr" {
		t.Errorf("FindID = %q, want A.fr", got)
	}
}

func TestIndex_laterNameWins(t *testing.T) {
	ix := NewIndex("", 0)
	ix.Replace([]Channel{
		{ID: "One.us", Name: "News"},
		{ID: "Two.us", Name: "Two", AltNames: []string{"news"}},
	}, nil)
	if got, _ := ix.FindID("", "News"); got != "Two.us" {
		t.Errorf("FindID = %q, want Two.us", got)
	}
}

func TestIndex_NamesAndGuides(t *testing.T) {
	ix := NewIndex("", 0)
	ix.Replace(frChannels, []Guide{
		{Channel: "TF1.fr", Site: "first.example"},
		{Channel: "TF1.fr", Site: "second.example"},
		{Channel: "", Site: "orphan.example"},
	})
	if diff := cmp.Diff([]string{"TF1", "Télévision française 1"}, ix.Names("TF1.fr")); diff != "" {
		t.Errorf("Names (-want +got):\n%s", diff)
	}
	if got := ix.Names("Unknown.fr"); len(got) != 0 {
		t.Errorf("Names(unknown) = %v", got)
	}
	if g, ok := ix.Guide("TF1.fr"); !ok || g.Site != "first.example" {
		t.Errorf("Guide = %+v, %v", g, ok)
	}
	st := ix.Stats()
	if st.Channels != 2 || st.Names != 3 || st.Guides != 1 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestIndex_GuideURL(t *testing.T) {
	ix := NewIndex("https://iptv-epg.org/files/", 0)
	tests := []struct{ id, want string }{
		{"TF1.fr", "https://iptv-epg.org/files/epg-fr.xml"},
		{"BBCOne.uk", "https://iptv-epg.org/files/epg-uk.xml"},
		{"CNN.us@East", "https://iptv-epg.org/files/epg-us.xml"},
		{"NoSuffix", "https://iptv-epg.org/files/epg-us.xml"},
		{"trailing.", "https://iptv-epg.org/files/epg-us.xml"},
		{"", "https://iptv-epg.org/files/epg-us.xml"},
	}
	for _, tt := range tests {
		if got := ix.GuideURL(tt.id); got != tt.want {
			t.Errorf("GuideURL(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestCountryCode(t *testing.T) {
	tests := []struct{ in, want string }{
		{"TF1.fr", "FR"},
		{"a.b.De", "DE"},
		{"CNN.us@East", "US"},
		{"Channel.123", ""},
		{"Channel.com", ""},
		{"Channel", ""},
	}
	for _, tt := range tests {
		if got := CountryCode(tt.in); got != tt.want {
			t.Errorf("CountryCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type fakeSource struct {
	calls    int32
	delay    time.Duration
	err      error
	channels []Channel
}

func (f *fakeSource) Fetch(ctx context.Context) ([]Channel, []Guide, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.channels, nil, nil
}

func TestEnsureFresh_failureKeepsPreviousIndex(t *testing.T) {
	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	ix := NewIndex("", time.Hour)
	ix.now = func() time.Time { return now }
	ix.Replace(frChannels, nil)
	now = now.Add(2 * time.Hour)

	src := &fakeSource{err: errors.New("boom")}
	refreshed, err := ix.EnsureFresh(context.Background(), src)
	if err == nil || refreshed {
		t.Fatalf("EnsureFresh = %v, %v; want error", refreshed, err)
	}
	if got, ok := ix.FindID("TF1.fr", ""); !ok || got != "TF1.fr" {
		t.Error("previous index lost after failed refresh")
	}
	if !ix.IsStale() {
		t.Error("failed refresh must not reset freshness")
	}
}

func TestEnsureFresh_freshSkipsFetch(t *testing.T) {
	ix := NewIndex("", 0)
	ix.Replace(frChannels, nil)
	src := &fakeSource{}
	refreshed, err := ix.EnsureFresh(context.Background(), src)
	if err != nil || refreshed || src.calls != 0 {
		t.Errorf("refreshed=%v err=%v calls=%d", refreshed, err, src.calls)
	}
}

func TestEnsureFresh_concurrentCallersFetchOnce(t *testing.T) {
	ix := NewIndex("", 0)
	src := &fakeSource{delay: 20 * time.Millisecond, channels: frChannels}

	var wg sync.WaitGroup
	var refreshes int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ix.EnsureFresh(context.Background(), src)
			if err != nil {
				t.Error(err)
			}
			if ok {
				atomic.AddInt32(&refreshes, 1)
			}
		}()
	}
	wg.Wait()
	if src.calls != 1 || refreshes != 1 {
		t.Errorf("fetch calls = %d, refreshes = %d; want 1, 1", src.calls, refreshes)
	}
	if _, ok := ix.Channel("France2.fr"); !ok {
		t.Error("index not populated")
	}
}
