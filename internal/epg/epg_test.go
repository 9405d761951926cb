package epg

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var base = time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time { return base.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

func prog(ch, title string, start, end time.Time) Programme {
	return Programme{ID: ProgrammeID(ch, start), ChannelID: ch, Title: title, Start: start, End: end}
}

func TestProgrammeID(t *testing.T) {
	start := time.Date(2026, 2, 11, 18, 0, 0, 0, time.UTC)
	if got, want := ProgrammeID("France2.fr", start), "France2.fr-1770832800"; got != want {
		t.Errorf("ProgrammeID = %q, want %q", got, want)
	}
}

func TestMerge_sortsSchedule(t *testing.T) {
	c := NewCache()
	c.Merge(base, map[string]Schedule{
		"CH1": {ChannelID: "CH1", Programmes: []Programme{
			prog("CH1", "Later", at(12, 0), at(13, 0)),
			prog("CH1", "Earlier", at(10, 0), at(11, 0)),
		}},
	})
	s, ok := c.Schedule("CH1")
	if !ok {
		t.Fatal("CH1 missing")
	}
	var titles []string
	for _, p := range s.Programmes {
		titles = append(titles, p.Title)
	}
	if diff := cmp.Diff([]string{"Earlier", "Later"}, titles); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestMerge_randomBatchesStaySorted(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	c := NewCache()
	for round := 0; round < 20; round++ {
		batch := map[string]Schedule{}
		for _, ch := range []string{"a", "b", "c"} {
			var ps []Programme
			for i, n := 0, r.Intn(30); i < n; i++ {
				start := base.Add(time.Duration(r.Intn(48*60)) * time.Minute)
				ps = append(ps, prog(ch, "x", start, start.Add(30*time.Minute)))
			}
			batch[ch] = Schedule{ChannelID: ch, Programmes: ps}
		}
		c.Merge(base, batch)
		for _, ch := range []string{"a", "b", "c"} {
			s, _ := c.Schedule(ch)
			for i := 1; i < len(s.Programmes); i++ {
				if s.Programmes[i].Start.Before(s.Programmes[i-1].Start) {
					t.Fatalf("round %d channel %s not sorted at %d", round, ch, i)
				}
			}
		}
	}
}

func TestMerge_idempotent(t *testing.T) {
	batch := map[string]Schedule{
		"CH1": {ChannelID: "CH1", Programmes: []Programme{prog("CH1", "A", at(10, 0), at(11, 0))}},
		"CH2": {ChannelID: "CH2", Programmes: []Programme{prog("CH2", "B", at(9, 0), at(10, 0))}},
	}
	once := NewCache()
	once.Merge(base, batch)
	twice := NewCache()
	twice.Merge(base, batch)
	twice.Merge(base, batch)

	for _, id := range []string{"CH1", "CH2"} {
		a, _ := once.Schedule(id)
		b, _ := twice.Schedule(id)
		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("%s differs after second merge (-once +twice):\n%s", id, diff)
		}
	}
	if once.Stats().Programmes != twice.Stats().Programmes {
		t.Errorf("programme count: once=%d twice=%d", once.Stats().Programmes, twice.Stats().Programmes)
	}
}

func TestMerge_replacesWholesale(t *testing.T) {
	c := NewCache()
	c.Merge(base, map[string]Schedule{"CH1": {Programmes: []Programme{
		prog("CH1", "old1", at(1, 0), at(2, 0)),
		prog("CH1", "old2", at(2, 0), at(3, 0)),
	}}})
	c.Merge(base, map[string]Schedule{"CH1": {Programmes: []Programme{prog("CH1", "new", at(5, 0), at(6, 0))}}})
	s, _ := c.Schedule("CH1")
	if len(s.Programmes) != 1 || s.Programmes[0].Title != "new" {
		t.Errorf("programmes = %+v, want just \"new\"", s.Programmes)
	}
}

func TestMerge_aliases(t *testing.T) {
	c := NewCache()
	c.Merge(base, map[string]Schedule{"Existing": {Programmes: []Programme{prog("Existing", "keep", at(1, 0), at(2, 0))}}})

	later := base.Add(time.Hour)
	applied := c.Merge(later, map[string]Schedule{
		"France2.fr": {Programmes: []Programme{prog("France2.fr", "Journal", at(18, 0), at(19, 0))}},
	},
		Alias{Key: "France 2", Source: "France2.fr"},
		Alias{Key: "Existing", Source: "France2.fr"},
		Alias{Key: "Ghost", Source: "Nowhere"},
	)
	if diff := cmp.Diff([]Alias{{Key: "France 2", Source: "France2.fr"}}, applied); diff != "" {
		t.Errorf("applied (-want +got):\n%s", diff)
	}
	s, ok := c.Schedule("France 2")
	if !ok || len(s.Programmes) != 1 || s.Programmes[0].Title != "Journal" {
		t.Errorf("alias schedule = %+v, %v", s, ok)
	}
	if s, _ := c.Schedule("Existing"); s.Programmes[0].Title != "keep" {
		t.Error("alias overwrote an existing key")
	}
	if c.Has("Ghost") {
		t.Error("alias with missing source was applied")
	}
	if !c.LastUpdated().Equal(later) {
		t.Errorf("LastUpdated = %v, want %v", c.LastUpdated(), later)
	}
}

func TestMerge_emptyBatchStillTouches(t *testing.T) {
	c := NewCache()
	if !c.LastUpdated().IsZero() {
		t.Fatal("new cache should have zero LastUpdated")
	}
	c.Merge(base, nil)
	if !c.LastUpdated().Equal(base) {
		t.Errorf("LastUpdated = %v", c.LastUpdated())
	}
}

func TestSchedule_returnsCopy(t *testing.T) {
	c := NewCache()
	c.Merge(base, map[string]Schedule{"CH1": {Programmes: []Programme{prog("CH1", "A", at(1, 0), at(2, 0))}}})
	s, _ := c.Schedule("CH1")
	s.Programmes[0].Title = "mutated"
	again, _ := c.Schedule("CH1")
	if again.Programmes[0].Title != "A" {
		t.Error("caller mutation leaked into cache")
	}
}

func TestNowNext(t *testing.T) {
	s := Schedule{ChannelID: "CH1", Programmes: []Programme{
		prog("CH1", "A", at(10, 0), at(11, 0)),
		prog("CH1", "B", at(11, 0), at(12, 0)),
		prog("CH1", "C", at(13, 0), at(14, 0)),
	}}
	tests := []struct {
		name     string
		now      time.Time
		wantNow  string
		wantNext string
	}{
		{"before everything", at(9, 0), "", "A"},
		{"start is inclusive", at(10, 0), "A", "B"},
		{"end is exclusive", at(11, 0), "B", "C"},
		{"gap", at(12, 30), "", "C"},
		{"last airing", at(13, 30), "C", ""},
		{"after everything", at(15, 0), "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nn := s.NowNext(tt.now)
			if got := title(nn.Now); got != tt.wantNow {
				t.Errorf("now = %q, want %q", got, tt.wantNow)
			}
			if got := title(nn.Next); got != tt.wantNext {
				t.Errorf("next = %q, want %q", got, tt.wantNext)
			}
		})
	}
}

func TestNowNext_overlapFirstMatchWins(t *testing.T) {
	s := Schedule{Programmes: []Programme{
		prog("CH1", "Long", at(10, 0), at(14, 0)),
		prog("CH1", "Inner", at(11, 0), at(12, 0)),
		prog("CH1", "After", at(15, 0), at(16, 0)),
	}}
	nn := s.NowNext(at(11, 30))
	if title(nn.Now) != "Long" || title(nn.Next) != "Inner" {
		t.Errorf("got now=%q next=%q", title(nn.Now), title(nn.Next))
	}
}

func TestNowNext_currentContainsNow(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		var ps []Programme
		for j, n := 0, r.Intn(10); j < n; j++ {
			start := base.Add(time.Duration(r.Intn(24*60)) * time.Minute)
			ps = append(ps, prog("c", "p", start, start.Add(time.Duration(1+r.Intn(120))*time.Minute)))
		}
		s := Schedule{ChannelID: "c", Programmes: ps}
		s.Sort()
		now := base.Add(time.Duration(r.Intn(26*60)) * time.Minute)
		nn := s.NowNext(now)
		if nn.Now != nil {
			if !nn.Now.Contains(now) {
				t.Fatalf("now %v not in [%v, %v)", now, nn.Now.Start, nn.Now.End)
			}
			continue
		}
		for _, p := range s.Programmes {
			if p.Contains(now) {
				t.Fatalf("now absent but %v contains %v", p, now)
			}
		}
	}
}

func TestCache_NowNext_unknownVsEmpty(t *testing.T) {
	c := NewCache()
	c.Merge(base, map[string]Schedule{"Empty": {}})
	if _, ok := c.NowNext("Unknown", base); ok {
		t.Error("unknown channel should report not found")
	}
	nn, ok := c.NowNext("Empty", base)
	if !ok {
		t.Fatal("known channel should be found")
	}
	if nn.Now != nil || nn.Next != nil || nn.ChannelID != "Empty" {
		t.Errorf("nn = %+v", nn)
	}
}

func TestStats(t *testing.T) {
	c := NewCache()
	c.Merge(base, map[string]Schedule{
		"a": {Programmes: []Programme{prog("a", "1", at(1, 0), at(2, 0)), prog("a", "2", at(2, 0), at(3, 0))}},
		"b": {Programmes: []Programme{prog("b", "1", at(1, 0), at(2, 0))}},
	})
	want := Stats{Channels: 2, Programmes: 3, LastUpdated: base}
	if diff := cmp.Diff(want, c.Stats()); diff != "" {
		t.Errorf("Stats (-want +got):\n%s", diff)
	}
}

func title(p *Programme) string {
	if p == nil {
		return ""
	}
	return p.Title
}
