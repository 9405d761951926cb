// Package epg holds programme schedules in memory and answers now/next queries.
package epg

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Programme is one guide listing. Start and End are UTC; End is exclusive.
type Programme struct {
	ID          string    `json:"id"`
	ChannelID   string    `json:"channel_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Category    string    `json:"category,omitempty"`
	IconURL     string    `json:"icon_url,omitempty"`
}

// ProgrammeID is stable across re-parses of the same guide.
func ProgrammeID(channelID string, start time.Time) string {
	return channelID + "-" + strconv.FormatInt(start.Unix(), 10)
}

// Contains reports whether t falls in [Start, End).
func (p Programme) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Schedule is a channel's programmes sorted ascending by Start.
type Schedule struct {
	ChannelID  string      `json:"channel_id"`
	Programmes []Programme `json:"programs"`
}

// Sort orders programmes by start time. Equal starts keep their input order.
func (s *Schedule) Sort() {
	sort.SliceStable(s.Programmes, func(i, j int) bool {
		return s.Programmes[i].Start.Before(s.Programmes[j].Start)
	})
}

func (s Schedule) clone() Schedule {
	out := Schedule{ChannelID: s.ChannelID}
	if s.Programmes != nil {
		out.Programmes = append(make([]Programme, 0, len(s.Programmes)), s.Programmes...)
	}
	return out
}

// NowNext is the programme airing at an instant and the one after it.
type NowNext struct {
	ChannelID string     `json:"channel_id"`
	Now       *Programme `json:"now,omitempty"`
	Next      *Programme `json:"next,omitempty"`
}

// NowNext scans the sorted programmes once. The first programme containing now
// is Now and the list entry after it is Next. If none contains now, Next is the
// first programme starting after now and Now is nil.
func (s Schedule) NowNext(now time.Time) NowNext {
	out := NowNext{ChannelID: s.ChannelID}
	for i := range s.Programmes {
		p := s.Programmes[i]
		if p.Contains(now) {
			out.Now = &p
			if i+1 < len(s.Programmes) {
				next := s.Programmes[i+1]
				out.Next = &next
			}
			return out
		}
		if p.Start.After(now) {
			out.Next = &p
			return out
		}
	}
	return out
}

// Alias asks Merge to store a copy of Source's schedule under Key.
type Alias struct {
	Key    string
	Source string
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Channels    int       `json:"channels"`
	Programmes  int       `json:"programmes"`
	LastUpdated time.Time `json:"last_updated,omitempty"`
}

// Cache maps channel ids to schedules. Entries are replaced per key and never removed.
type Cache struct {
	mu        sync.RWMutex
	schedules map[string]Schedule
	updated   time.Time
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{schedules: make(map[string]Schedule)}
}

// Schedule returns a copy of the stored schedule for id.
func (c *Cache) Schedule(id string) (Schedule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schedules[id]
	if !ok {
		return Schedule{}, false
	}
	return s.clone(), true
}

// NowNext answers a now/next query for id. Unknown ids return false; a known
// channel with nothing airing returns true with Now nil.
func (c *Cache) NowNext(id string, now time.Time) (NowNext, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schedules[id]
	if !ok {
		return NowNext{}, false
	}
	nn := s.NowNext(now)
	nn.ChannelID = id
	return nn, true
}

// Has reports whether a schedule is stored under id.
func (c *Cache) Has(id string) bool {
	c.mu.RLock()
	_, ok := c.schedules[id]
	c.mu.RUnlock()
	return ok
}

// Merge replaces each given schedule wholesale, then applies aliases whose Key
// is still absent and whose Source is present. The work happens under a single
// write lock and sets the last-updated time to at. It returns the aliases applied.
func (c *Cache) Merge(at time.Time, schedules map[string]Schedule, aliases ...Alias) []Alias {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, s := range schedules {
		s = s.clone()
		s.ChannelID = id
		s.Sort()
		c.schedules[id] = s
	}
	var applied []Alias
	for _, a := range aliases {
		if a.Key == "" {
			continue
		}
		if _, exists := c.schedules[a.Key]; exists {
			continue
		}
		src, ok := c.schedules[a.Source]
		if !ok {
			continue
		}
		c.schedules[a.Key] = src.clone()
		applied = append(applied, a)
	}
	c.updated = at
	return applied
}

// LastUpdated is the time of the last Merge; zero if none.
func (c *Cache) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updated
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := Stats{Channels: len(c.schedules), LastUpdated: c.updated}
	for _, s := range c.schedules {
		st.Programmes += len(s.Programmes)
	}
	return st
}
