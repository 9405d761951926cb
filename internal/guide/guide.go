// Package guide resolves arbitrary channel ids to schedules. On a cache miss it
// refreshes the channel directory if stale, maps the id to a directory entry,
// downloads and parses that entry's country guide, merges every schedule into
// the cache and aliases the requested id onto the matching guide channel.
package guide

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/snapetech/iptvguide/internal/epg"
	"github.com/snapetech/iptvguide/internal/httpclient"
	"github.com/snapetech/iptvguide/internal/iptvorg"
	"github.com/snapetech/iptvguide/internal/metrics"
	"github.com/snapetech/iptvguide/internal/playlist"
	"github.com/snapetech/iptvguide/internal/safeurl"
	"github.com/snapetech/iptvguide/internal/xmltv"
)

const (
	DefaultGuideBaseURL = "https://iptv-epg.org/files"
	DefaultGuideTimeout = 60 * time.Second
)

// ChannelLookup finds a requested id in the local playlist.
type ChannelLookup interface {
	LookupChannel(ctx context.Context, id string) (playlist.Channel, bool, error)
}

// Strategy names how a requested id was aliased onto a guide channel.
type Strategy string

const (
	StrategyNone        Strategy = ""
	StrategyDirectID    Strategy = "direct_id"
	StrategyDisplayName Strategy = "display_name"
)

type Options struct {
	// Enabled turns on fetch-on-miss. When false only cached schedules are served.
	Enabled bool

	Index     *iptvorg.Index
	Directory iptvorg.Source // nil skips directory refresh
	Playlist  ChannelLookup  // nil treats every id as unknown locally
	Cache     *epg.Cache

	Client        *http.Client
	GuideTimeout  time.Duration
	MaxGuideBytes int64

	Metrics *metrics.Metrics
	Logger  *log.Logger
	Now     func() time.Time
}

// Service is safe for concurrent use. Concurrent misses that resolve to the
// same country guide each fetch it; the merges converge on the same state.
type Service struct {
	enabled   bool
	index     *iptvorg.Index
	directory iptvorg.Source
	playlist  ChannelLookup
	cache     *epg.Cache

	client        *http.Client
	guideTimeout  time.Duration
	maxGuideBytes int64

	metrics *metrics.Metrics
	log     *log.Logger
	now     func() time.Time
}

func New(o Options) *Service {
	s := &Service{
		enabled:       o.Enabled,
		index:         o.Index,
		directory:     o.Directory,
		playlist:      o.Playlist,
		cache:         o.Cache,
		client:        o.Client,
		guideTimeout:  o.GuideTimeout,
		maxGuideBytes: o.MaxGuideBytes,
		metrics:       o.Metrics,
		log:           o.Logger,
		now:           o.Now,
	}
	if s.index == nil {
		s.index = iptvorg.NewIndex(DefaultGuideBaseURL, 0)
	}
	if s.cache == nil {
		s.cache = epg.NewCache()
	}
	if s.guideTimeout <= 0 {
		s.guideTimeout = DefaultGuideTimeout
	}
	if s.client == nil {
		s.client = httpclient.WithTimeout(s.guideTimeout)
	}
	if s.maxGuideBytes <= 0 || s.maxGuideBytes > xmltv.MaxSize {
		s.maxGuideBytes = xmltv.MaxSize
	}
	if s.log == nil {
		s.log = log.NewWithOptions(os.Stderr, log.Options{Prefix: "guide", ReportTimestamp: true})
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) Enabled() bool         { return s.enabled }
func (s *Service) Index() *iptvorg.Index { return s.index }
func (s *Service) Cache() *epg.Cache     { return s.cache }

// Resolution reports what one Resolve call did.
type Resolution struct {
	Requested   string   `json:"requested"`
	DirectoryID string   `json:"directory_id,omitempty"`
	Matched     bool     `json:"matched"`
	GuideURL    string   `json:"guide_url,omitempty"`
	Channels    int      `json:"channels"`
	Programmes  int      `json:"programmes"`
	AliasedTo   string   `json:"aliased_to,omitempty"`
	Strategy    Strategy `json:"strategy,omitempty"`
}

// Resolve runs the fetch flow for requested regardless of the cache or the
// Enabled flag. A directory miss returns Matched false and a nil error. Fetch
// and parse failures are returned with the cache left unmodified.
func (s *Service) Resolve(ctx context.Context, requested string) (Resolution, error) {
	res := Resolution{Requested: requested}

	s.ensureDirectory(ctx)

	explicitID, name := s.localCandidates(ctx, requested)
	dirID, ok := s.index.FindID(explicitID, name)
	if !ok {
		s.log.Info("no directory match", "requested", requested, "name", name)
		return res, nil
	}
	res.DirectoryID, res.Matched = dirID, true
	dirNames := s.index.Names(dirID)

	url := s.index.GuideURL(dirID)
	if url == "" {
		return res, ErrNoGuideSource
	}
	res.GuideURL = url
	s.log.Info("resolved", "requested", requested, "directory_id", dirID, "name", name, "guide", url)

	started := s.now()
	text, tooLarge, err := s.fetchGuide(ctx, url)
	if err != nil {
		s.metrics.GuideFetch(metrics.ResultError, s.now().Sub(started))
		return res, err
	}
	if tooLarge {
		s.log.Warn("guide exceeds size limit, skipping", "url", url, "limit", s.maxGuideBytes)
	}
	parsed, err := xmltv.Parse(text, nil, CountryOffset(iptvorg.CountryCode(dirID)))
	if err != nil {
		s.metrics.GuideFetch(metrics.ResultError, s.now().Sub(started))
		return res, fmt.Errorf("parse guide %s: %w", safeurl.Redact(url), err)
	}
	res.Channels, res.Programmes = len(parsed.Schedules), parsed.Programmes()
	switch {
	case tooLarge:
		s.metrics.GuideFetch(metrics.ResultLarge, s.now().Sub(started))
	case res.Programmes == 0:
		s.metrics.GuideFetch(metrics.ResultEmpty, s.now().Sub(started))
	default:
		s.metrics.GuideFetch(metrics.ResultOK, s.now().Sub(started))
	}
	s.log.Info("guide parsed", "url", url, "channels", res.Channels, "programmes", res.Programmes)

	source, strategy, tried := pickAlias(requested, dirID, name, dirNames, parsed)
	var aliases []epg.Alias
	if source != "" {
		aliases = append(aliases, epg.Alias{Key: requested, Source: source})
	}
	applied := s.cache.Merge(s.now(), parsed.Schedules, aliases...)
	if len(applied) > 0 {
		res.AliasedTo, res.Strategy = source, strategy
		s.metrics.AliasResolution(string(strategy))
		s.log.Info("aliased", "requested", requested, "to", source, "strategy", strategy)
	} else if !s.cache.Has(requested) {
		s.log.Warn("no guide channel for requested id", "requested", requested, "directory_id", dirID,
			"tried", tried, "display_names", sampleKeys(parsed.DisplayNames, 20))
	}
	return res, nil
}

// Schedule serves id from the cache, running Resolve on a miss when enabled.
func (s *Service) Schedule(ctx context.Context, id string) (epg.Schedule, bool) {
	if sch, ok := s.cache.Schedule(id); ok {
		s.metrics.CacheLookup(metrics.ResultHit)
		return sch, true
	}
	s.metrics.CacheLookup(metrics.ResultMiss)
	if !s.enabled {
		return epg.Schedule{}, false
	}
	s.log.Debug("cache miss, fetching", "channel_id", id)
	s.resolveQuietly(ctx, id)
	return s.cache.Schedule(id)
}

// NowNext is Schedule for a now/next query at now.
func (s *Service) NowNext(ctx context.Context, id string, now time.Time) (epg.NowNext, bool) {
	if nn, ok := s.cache.NowNext(id, now); ok {
		s.metrics.CacheLookup(metrics.ResultHit)
		return nn, true
	}
	s.metrics.CacheLookup(metrics.ResultMiss)
	if !s.enabled {
		return epg.NowNext{}, false
	}
	s.resolveQuietly(ctx, id)
	return s.cache.NowNext(id, now)
}

func (s *Service) resolveQuietly(ctx context.Context, id string) {
	if _, err := s.Resolve(ctx, id); err != nil {
		s.log.Warn("guide fetch failed", "channel_id", id, "err", err)
	}
}

func (s *Service) ensureDirectory(ctx context.Context) {
	if s.directory == nil {
		return
	}
	refreshed, err := s.index.EnsureFresh(ctx, s.directory)
	if err != nil {
		s.metrics.DirectoryRefresh(metrics.ResultError)
		s.log.Warn("directory refresh failed, using previous index", "err", err)
		return
	}
	if refreshed {
		s.metrics.DirectoryRefresh(metrics.ResultOK)
		st := s.index.Stats()
		s.log.Info("directory refreshed", "channels", st.Channels, "guides", st.Guides)
	}
}

// localCandidates returns the explicit id and display name for requested: the
// playlist's tvg-id and name on a hit, requested twice otherwise.
func (s *Service) localCandidates(ctx context.Context, requested string) (string, string) {
	if s.playlist != nil {
		ch, ok, err := s.playlist.LookupChannel(ctx, requested)
		if err != nil {
			s.log.Warn("playlist lookup failed", "requested", requested, "err", err)
		} else if ok {
			return ch.TVGID, ch.Name
		}
	}
	return requested, requested
}

// pickAlias chooses the guide channel whose schedule should also be stored
// under requested. The directory id wins if the guide has it; otherwise the
// first name candidate found in the guide's display names. Only that first hit
// is returned, even if its schedule turns out to be empty.
func pickAlias(requested, dirID, localName string, dirNames []string, parsed *xmltv.Result) (string, Strategy, []string) {
	if _, ok := parsed.Schedules[dirID]; ok {
		return dirID, StrategyDirectID, nil
	}
	tried := nameCandidates(requested, localName, dirNames)
	for _, c := range tried {
		if src, ok := parsed.DisplayNames[strings.ToLower(c)]; ok {
			return src, StrategyDisplayName, tried
		}
	}
	return "", StrategyNone, tried
}

// nameCandidates is the display-name probe order: local name, directory name
// and alt names, the requested id, then the requested id before its last dot.
func nameCandidates(requested, localName string, dirNames []string) []string {
	out := make([]string, 0, len(dirNames)+3)
	out = append(out, localName)
	out = append(out, dirNames...)
	out = append(out, requested)
	if i := strings.LastIndexByte(requested, '.'); i > 0 {
		out = append(out, requested[:i])
	}
	return out
}

func sampleKeys(m map[string]string, n int) []string {
	out := make([]string, 0, n)
	for k := range m {
		if len(out) == n {
			break
		}
		out = append(out, k)
	}
	return out
}
