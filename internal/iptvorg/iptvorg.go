// Package iptvorg keeps an in-memory index of the iptv-org channel directory
// (https://iptv-org.github.io/api/channels.json and guides.json) and derives the
// per-country guide URL for a directory entry.
//
// # Matching
//
//  1. Exact directory id ("TF1.fr").
//  2. Case-insensitive name or alt name ("télévision française 1").
//
// The index is replaced wholesale on refresh and is considered stale once it is
// older than its TTL. A new index is stale until the first successful refresh.
package iptvorg

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	DefaultTTL      = 6 * time.Hour
	fallbackCountry = "us"
)

// Channel is one record from channels.json.
type Channel struct {
	ID         string   `json:"id"`        // e.g. "TF1.fr"
	Name       string   `json:"name"`      // e.g. "TF1"
	AltNames   []string `json:"alt_names"` // alternative display names
	Country    string   `json:"country"`   // ISO 3166-1 alpha-2 upper-case, e.g. "FR"
	Categories []string `json:"categories"`
}

// Guide is one record from guides.json. Only Channel is used.
type Guide struct {
	Channel string `json:"channel"` // may be null upstream
	Site    string `json:"site"`
	Lang    string `json:"lang"`
}

// Source fetches a full directory snapshot.
type Source interface {
	Fetch(ctx context.Context) ([]Channel, []Guide, error)
}

// Stats describes the current index contents.
type Stats struct {
	Channels    int       `json:"channels"`
	Names       int       `json:"names"`
	Guides      int       `json:"guides"`
	LastUpdated time.Time `json:"last_updated,omitempty"`
}

// Index is safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	byID    map[string]Channel
	byName  map[string]Channel // lowercased name/alt name; later entries win
	guides  map[string]Guide   // first guide record per channel
	updated time.Time

	ttl       time.Duration
	guideBase string
	now       func() time.Time
}

// NewIndex returns an empty (stale) index. guideBaseURL is the directory holding
// epg-<cc>.xml files; ttl <= 0 uses DefaultTTL.
func NewIndex(guideBaseURL string, ttl time.Duration) *Index {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Index{
		byID:      map[string]Channel{},
		byName:    map[string]Channel{},
		guides:    map[string]Guide{},
		ttl:       ttl,
		guideBase: strings.TrimSuffix(guideBaseURL, "/"),
		now:       time.Now,
	}
}

// IsStale reports whether the index was never populated or is older than its TTL.
func (ix *Index) IsStale() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.staleLocked()
}

func (ix *Index) staleLocked() bool {
	return ix.updated.IsZero() || ix.now().Sub(ix.updated) > ix.ttl
}

// Replace rebuilds every lookup table from a fetched snapshot and resets the
// freshness timer. Call it only with data from a successful fetch.
func (ix *Index) Replace(channels []Channel, guides []Guide) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.replaceLocked(channels, guides)
}

func (ix *Index) replaceLocked(channels []Channel, guides []Guide) {
	byID := make(map[string]Channel, len(channels))
	byName := make(map[string]Channel, len(channels)*2)
	for _, ch := range channels {
		byName[strings.ToLower(ch.Name)] = ch
		for _, alt := range ch.AltNames {
			byName[strings.ToLower(alt)] = ch
		}
		byID[ch.ID] = ch
	}
	byGuide := make(map[string]Guide, len(guides))
	for _, g := range guides {
		if g.Channel == "" {
			continue
		}
		if _, ok := byGuide[g.Channel]; !ok {
			byGuide[g.Channel] = g
		}
	}
	ix.byID, ix.byName, ix.guides = byID, byName, byGuide
	ix.updated = ix.now()
}

// EnsureFresh refreshes the index from src when stale. Staleness is tested under
// the read lock, then again under the write lock before fetching, so racing
// callers trigger one fetch. The write lock is held for the fetch. On error the
// previous index is kept.
func (ix *Index) EnsureFresh(ctx context.Context, src Source) (bool, error) {
	if !ix.IsStale() {
		return false, nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if !ix.staleLocked() {
		return false, nil
	}
	channels, guides, err := src.Fetch(ctx)
	if err != nil {
		return false, err
	}
	ix.replaceLocked(channels, guides)
	return true, nil
}

// FindID resolves a channel to its directory id. An explicit id that is an exact
// key wins; otherwise name is matched case-insensitively.
func (ix *Index) FindID(explicitID, name string) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if explicitID != "" {
		if _, ok := ix.byID[explicitID]; ok {
			return explicitID, true
		}
	}
	if ch, ok := ix.byName[strings.ToLower(name)]; ok {
		return ch.ID, true
	}
	return "", false
}

// Names returns the entry's name followed by its alt names, or nil if unknown.
func (ix *Index) Names(id string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ch, ok := ix.byID[id]
	if !ok {
		return nil
	}
	return append([]string{ch.Name}, ch.AltNames...)
}

// Channel returns the directory record for id.
func (ix *Index) Channel(id string) (Channel, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ch, ok := ix.byID[id]
	return ch, ok
}

// Guide returns the first guides.json record naming id.
func (ix *Index) Guide(id string) (Guide, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	g, ok := ix.guides[id]
	return g, ok
}

// GuideURL is <base>/epg-<cc>.xml where cc is the id's country suffix, or "us".
func (ix *Index) GuideURL(id string) string {
	cc := strings.ToLower(CountryCode(id))
	if cc == "" {
		cc = fallbackCountry
	}
	return ix.guideBase + "/epg-" + cc + ".xml"
}

// Stats reports index sizes and the last successful refresh.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Stats{
		Channels:    len(ix.byID),
		Names:       len(ix.byName),
		Guides:      len(ix.guides),
		LastUpdated: ix.updated,
	}
}

// CountryCode returns the upper-case country suffix of a directory id
// ("TF1.fr" -> "FR", "CNN.us@East" -> "US"), or "" when the trailing dot
// segment is not a two-letter code.
func CountryCode(id string) string {
	if at := strings.IndexByte(id, '@'); at >= 0 {
		id = id[:at]
	}
	dot := strings.LastIndexByte(id, '.')
	if dot < 0 {
		return ""
	}
	seg := id[dot+1:]
	if len(seg) != 2 || !isASCIILetter(seg[0]) || !isASCIILetter(seg[1]) {
		return ""
	}
	return strings.ToUpper(seg)
}

func isASCIILetter(b byte) bool {
	return ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}
