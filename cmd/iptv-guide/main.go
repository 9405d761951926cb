// Command iptv-guide: resolve TV channel ids to programme schedules and serve them.
//
//	serve          Load the playlist (if configured), then serve the guide API
//	lookup         Resolve one channel id and print its schedule or now/next as JSON
//	playlist-load  Fetch an M3U playlist and store it in the playlist database
//	check          Probe the playlist, directory and a guide file, report OK / fail
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/snapetech/iptvguide/internal/api"
	"github.com/snapetech/iptvguide/internal/config"
	"github.com/snapetech/iptvguide/internal/epg"
	"github.com/snapetech/iptvguide/internal/guide"
	"github.com/snapetech/iptvguide/internal/health"
	"github.com/snapetech/iptvguide/internal/httpclient"
	"github.com/snapetech/iptvguide/internal/iptvorg"
	"github.com/snapetech/iptvguide/internal/metrics"
	"github.com/snapetech/iptvguide/internal/playlist"
	"github.com/snapetech/iptvguide/internal/safeurl"
	"github.com/snapetech/iptvguide/internal/xmltv"
)

func newLogger(level, prefix string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: prefix, ReportTimestamp: true})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// app holds the wired components shared by serve and lookup.
type app struct {
	cfg      *config.Config
	registry *prometheus.Registry
	store    *playlist.Store // nil when no playlist DB could be opened
	guide    *guide.Service
}

func newApp(cfg *config.Config, logger *log.Logger, openStore bool) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	m := metrics.New(a.registry)

	var lookup guide.ChannelLookup
	if openStore && cfg.PlaylistDB != "" {
		st, err := playlist.Open(cfg.PlaylistDB)
		if err != nil {
			return nil, fmt.Errorf("open playlist db: %w", err)
		}
		a.store = st
		lookup = st
	}

	up := httpclient.NewUpstream(cfg.UpstreamRPS, cfg.HostConcurrency)
	a.guide = guide.New(guide.Options{
		Enabled:       cfg.EPGEnabled,
		Index:         iptvorg.NewIndex(cfg.GuideBaseURL, cfg.IndexTTL),
		Directory:     &iptvorg.Client{BaseURL: cfg.DirectoryURL, HTTP: up.Client(cfg.IndexTimeout), Timeout: cfg.IndexTimeout},
		Playlist:      lookup,
		Cache:         epg.NewCache(),
		Client:        up.Client(cfg.GuideTimeout),
		GuideTimeout:  cfg.GuideTimeout,
		MaxGuideBytes: cfg.MaxGuideBytes,
		Metrics:       m,
		Logger:        logger.WithPrefix("guide"),
	})
	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// loadPlaylist fetches src and replaces the stored playlist.
func loadPlaylist(ctx context.Context, st *playlist.Store, src string, logger *log.Logger) (int, error) {
	channels, err := playlist.FetchM3U(ctx, httpclient.WithTimeout(2*time.Minute), src)
	if err != nil {
		return 0, err
	}
	if err := st.Replace(ctx, channels); err != nil {
		return 0, fmt.Errorf("store playlist: %w", err)
	}
	logger.Info("playlist loaded", "src", safeurl.Redact(src), "channels", len(channels))
	return len(channels), nil
}

func main() {
	_ = config.LoadEnvFile(".env")

	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	serveAddr := serveCmd.String("addr", "", "Listen address (default: IPTV_GUIDE_LISTEN or :3001)")
	serveM3U := serveCmd.String("m3u", "", "Playlist URL or path to load at startup (default: IPTV_GUIDE_M3U_URL)")
	serveNoEPG := serveCmd.Bool("cache-only", false, "Serve cached schedules only; never fetch on a miss")

	lookupCmd := flag.NewFlagSet("lookup", flag.ExitOnError)
	lookupAll := lookupCmd.Bool("all", false, "Print the full schedule instead of now/next")
	lookupTZ := lookupCmd.String("tz", "", "Offset for printed times, e.g. +0100 (default UTC)")
	lookupNoDB := lookupCmd.Bool("no-playlist", false, "Skip the local playlist lookup")

	loadCmd := flag.NewFlagSet("playlist-load", flag.ExitOnError)
	loadM3U := loadCmd.String("m3u", "", "Playlist URL or path (default: IPTV_GUIDE_M3U_URL)")
	loadDB := loadCmd.String("db", "", "SQLite path (default: IPTV_GUIDE_PLAYLIST_DB)")

	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	checkCountry := checkCmd.String("country", "us", "Country guide to probe")
	checkTimeout := checkCmd.Duration("timeout", 30*time.Second, "Timeout for all probes")

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <serve|lookup|playlist-load|check> [flags]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  serve          Serve /api/epg/{id}, /api/epg/{id}/now, /api/health, /metrics\n")
		fmt.Fprintf(os.Stderr, "  lookup         Resolve one channel id and print JSON (lookup [flags] <channel-id>)\n")
		fmt.Fprintf(os.Stderr, "  playlist-load  Fetch M3U and store channels for local alias lookup\n")
		fmt.Fprintf(os.Stderr, "  check          Probe playlist, directory and a country guide\n")
		os.Exit(1)
	}

	cfg := config.Load()
	logger := newLogger(cfg.LogLevel, "iptv-guide")
	if err := cfg.Validate(); err != nil {
		logger.Fatal("config", "err", err)
	}

	switch os.Args[1] {
	case "serve":
		_ = serveCmd.Parse(os.Args[2:])
		if *serveAddr != "" {
			cfg.ListenAddr = *serveAddr
		}
		if *serveNoEPG {
			cfg.EPGEnabled = false
		}
		src := *serveM3U
		if src == "" {
			src = cfg.M3UURL
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(cfg, logger, true)
		if err != nil {
			logger.Fatal("startup", "err", err)
		}
		defer a.close()
		if src != "" && a.store != nil {
			if _, err := loadPlaylist(ctx, a.store, src, logger); err != nil {
				// Stale stored playlist still serves lookups.
				logger.Warn("playlist load failed", "err", err)
			}
		}
		srv := &api.Server{
			Addr:     cfg.ListenAddr,
			Guide:    a.guide,
			Gatherer: a.registry,
			Logger:   logger.WithPrefix("api"),
		}
		if a.store != nil {
			srv.Playlist = a.store
		}
		if err := srv.Run(ctx); err != nil {
			logger.Error("server", "err", err)
			a.close()
			os.Exit(1)
		}

	case "lookup":
		_ = lookupCmd.Parse(os.Args[2:])
		if lookupCmd.NArg() != 1 {
			fmt.Fprintf(os.Stderr, "Usage: %s lookup [-all] [-tz +HHMM] <channel-id>\n", os.Args[0])
			os.Exit(1)
		}
		id := lookupCmd.Arg(0)
		loc := time.UTC
		if *lookupTZ != "" {
			secs, ok := xmltv.ParseOffset(*lookupTZ)
			if !ok {
				logger.Fatal("invalid -tz", "tz", *lookupTZ)
			}
			loc = time.FixedZone("", secs)
		}
		cfg.EPGEnabled = true
		a, err := newApp(cfg, logger, !*lookupNoDB)
		if err != nil {
			logger.Fatal("startup", "err", err)
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		res, err := a.guide.Resolve(ctx, id)
		if err != nil {
			logger.Error("lookup", "channel_id", id, "err", err)
		} else {
			logger.Info("resolved", "channel_id", id, "directory_id", res.DirectoryID, "guide", safeurl.Redact(res.GuideURL),
				"strategy", string(res.Strategy), "programmes", res.Programmes)
		}
		if err := printLookup(os.Stdout, a.guide.Cache(), id, *lookupAll, time.Now().UTC(), loc); err != nil {
			if errors.Is(err, errNoData) {
				a.close()
				os.Exit(2)
			}
			logger.Fatal("print", "err", err)
		}

	case "playlist-load":
		_ = loadCmd.Parse(os.Args[2:])
		src := *loadM3U
		if src == "" {
			src = cfg.M3UURL
		}
		if src == "" {
			logger.Fatal("need -m3u or IPTV_GUIDE_M3U_URL")
		}
		path := *loadDB
		if path == "" {
			path = cfg.PlaylistDB
		}
		st, err := playlist.Open(path)
		if err != nil {
			logger.Fatal("open playlist db", "path", path, "err", err)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		n, err := loadPlaylist(ctx, st, src, logger)
		stop()
		_ = st.Close()
		if err != nil {
			logger.Fatal("playlist-load", "err", err)
		}
		fmt.Printf("%d channels stored in %s\n", n, path)

	case "check":
		_ = checkCmd.Parse(os.Args[2:])
		ctx, cancel := context.WithTimeout(context.Background(), *checkTimeout)
		defer cancel()
		failed := false
		report := func(name string, err error) {
			if err != nil {
				failed = true
				fmt.Printf("%-10s FAIL %v\n", name, err)
				return
			}
			fmt.Printf("%-10s OK\n", name)
		}
		if cfg.M3UURL != "" {
			report("playlist", health.CheckPlaylist(ctx, nil, cfg.M3UURL))
		}
		report("directory", health.CheckDirectory(ctx, nil, cfg.DirectoryURL))
		idx := iptvorg.NewIndex(cfg.GuideBaseURL, cfg.IndexTTL)
		report("guide", health.CheckGuide(ctx, nil, idx.GuideURL("x."+*checkCountry)))
		if failed {
			cancel()
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", os.Args[1])
		os.Exit(1)
	}
}

var errNoData = errors.New("no EPG data found for channel")

func printLookup(w io.Writer, cache *epg.Cache, id string, all bool, now time.Time, loc *time.Location) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if all {
		sch, ok := cache.Schedule(id)
		if !ok {
			return errNoData
		}
		for i := range sch.Programmes {
			sch.Programmes[i].Start = sch.Programmes[i].Start.In(loc)
			sch.Programmes[i].End = sch.Programmes[i].End.In(loc)
		}
		return enc.Encode(sch)
	}
	nn, ok := cache.NowNext(id, now)
	if !ok {
		return errNoData
	}
	for _, p := range []*epg.Programme{nn.Now, nn.Next} {
		if p != nil {
			p.Start = p.Start.In(loc)
			p.End = p.End.In(loc)
		}
	}
	return enc.Encode(nn)
}
