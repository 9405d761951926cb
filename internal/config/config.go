package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/snapetech/iptvguide/internal/safeurl"
)

// Config holds the guide service settings.
// Load from env; call LoadEnvFile(".env") first to seed env from a file.
type Config struct {
	ListenAddr string // e.g. :3001

	// EPGEnabled gates fetch-on-miss. When false only cache hits are served.
	EPGEnabled bool

	// Upstreams
	DirectoryURL string // base of channels.json / guides.json
	GuideBaseURL string // base of epg-<cc>.xml files

	IndexTimeout  time.Duration // directory JSON fetch
	GuideTimeout  time.Duration // guide XML fetch
	IndexTTL      time.Duration // directory freshness window
	MaxGuideBytes int64

	// Upstream politeness: shared by directory and guide fetches.
	UpstreamRPS     float64
	HostConcurrency int

	// Playlist
	PlaylistDB string // SQLite file for the local playlist lookup
	M3UURL     string // optional playlist (URL or file path) loaded at startup

	LogLevel string
}

const (
	DefaultDirectoryURL  = "https://iptv-org.github.io/api"
	DefaultGuideBaseURL  = "https://iptv-epg.org/files"
	DefaultMaxGuideBytes = 50 * 1024 * 1024
)

// Load reads config from environment.
func Load() *Config {
	c := &Config{
		ListenAddr:      getEnv("IPTV_GUIDE_LISTEN", ":3001"),
		EPGEnabled:      getEnvEnabled("IPTV_GUIDE_EPG_ENABLED", true),
		DirectoryURL:    strings.TrimSuffix(getEnv("IPTV_GUIDE_DIRECTORY_URL", DefaultDirectoryURL), "/"),
		GuideBaseURL:    strings.TrimSuffix(getEnv("IPTV_GUIDE_GUIDE_BASE_URL", DefaultGuideBaseURL), "/"),
		IndexTimeout:    getEnvDuration("IPTV_GUIDE_INDEX_TIMEOUT", 30*time.Second),
		GuideTimeout:    getEnvDuration("IPTV_GUIDE_GUIDE_TIMEOUT", 60*time.Second),
		IndexTTL:        getEnvDuration("IPTV_GUIDE_INDEX_TTL", 6*time.Hour),
		MaxGuideBytes:   getEnvInt64("IPTV_GUIDE_MAX_GUIDE_BYTES", DefaultMaxGuideBytes),
		UpstreamRPS:     getEnvFloat("IPTV_GUIDE_UPSTREAM_RPS", 4),
		HostConcurrency: getEnvInt("IPTV_GUIDE_HOST_CONCURRENCY", 4),
		PlaylistDB:      getEnv("IPTV_GUIDE_PLAYLIST_DB", "./playlist.db"),
		M3UURL:          os.Getenv("IPTV_GUIDE_M3U_URL"),
		LogLevel:        strings.ToLower(getEnv("IPTV_GUIDE_LOG_LEVEL", "info")),
	}
	if c.IndexTimeout <= 0 {
		c.IndexTimeout = 30 * time.Second
	}
	if c.GuideTimeout <= 0 {
		c.GuideTimeout = 60 * time.Second
	}
	if c.IndexTTL <= 0 {
		c.IndexTTL = 6 * time.Hour
	}
	if c.MaxGuideBytes <= 0 {
		c.MaxGuideBytes = DefaultMaxGuideBytes
	}
	if c.HostConcurrency <= 0 {
		c.HostConcurrency = 4
	}
	return c
}

// Validate reports settings that would make upstream fetches unsafe or impossible.
func (c *Config) Validate() error {
	if !safeurl.IsHTTPOrHTTPS(c.DirectoryURL) {
		return fmt.Errorf("IPTV_GUIDE_DIRECTORY_URL must be http(s): %q", c.DirectoryURL)
	}
	if !safeurl.IsHTTPOrHTTPS(c.GuideBaseURL) {
		return fmt.Errorf("IPTV_GUIDE_GUIDE_BASE_URL must be http(s): %q", c.GuideBaseURL)
	}
	if c.UpstreamRPS < 0 {
		return fmt.Errorf("IPTV_GUIDE_UPSTREAM_RPS must be >= 0, got %v", c.UpstreamRPS)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, _ := strconv.Atoi(v)
		return n
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return defaultVal
		}
		return f
	}
	return defaultVal
}

// getEnvEnabled treats anything except "false" and "0" as enabled.
func getEnvEnabled(key string, defaultVal bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	v = strings.TrimSpace(v)
	return v != "false" && v != "0"
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
