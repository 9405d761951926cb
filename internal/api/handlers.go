package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/snapetech/iptvguide/internal/epg"
	"github.com/snapetech/iptvguide/internal/xmltv"
)

const notFoundMessage = "No EPG data found for channel"

type healthResponse struct {
	Status            string     `json:"status"`
	EPGEnabled        bool       `json:"epg_enabled"`
	Channels          int        `json:"channels"`
	DirectoryChannels int        `json:"directory_channels"`
	CachedSchedules   int        `json:"cached_schedules"`
	CacheUpdated      *time.Time `json:"cache_updated,omitempty"`
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", EPGEnabled: s.Guide.Enabled()}
	if s.Playlist != nil {
		n, err := s.Playlist.Count(r.Context())
		if err != nil {
			s.logger().Warn("playlist count", "err", err)
		}
		resp.Channels = n
	}
	resp.DirectoryChannels = s.Guide.Index().Stats().Channels
	cs := s.Guide.Cache().Stats()
	resp.CachedSchedules = cs.Channels
	if !cs.LastUpdated.IsZero() {
		resp.CacheUpdated = &cs.LastUpdated
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/epg/{channelID}[?tz=+HHMM]
func (s *Server) serveSchedule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["channelID"]
	loc, convert := tzParam(r)
	sch, ok := s.Guide.Schedule(r.Context(), id)
	if !ok {
		writeNotFound(w, id)
		return
	}
	if convert {
		for i := range sch.Programmes {
			inZone(&sch.Programmes[i], loc)
		}
	}
	writeJSON(w, http.StatusOK, sch)
}

// GET /api/epg/{channelID}/now[?tz=+HHMM]
func (s *Server) serveNowNext(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["channelID"]
	loc, convert := tzParam(r)
	nn, ok := s.Guide.NowNext(r.Context(), id, s.now().UTC())
	if !ok {
		writeNotFound(w, id)
		return
	}
	if convert {
		inZone(nn.Now, loc)
		inZone(nn.Next, loc)
	}
	writeJSON(w, http.StatusOK, nn)
}

// tzParam reads ?tz=. Empty means UTC; a malformed value is ignored.
func tzParam(r *http.Request) (*time.Location, bool) {
	q := r.URL.Query()
	if !q.Has("tz") {
		return nil, false
	}
	tz := q.Get("tz")
	if tz == "" {
		return time.UTC, true
	}
	secs, ok := xmltv.ParseOffset(tz)
	if !ok {
		return nil, false
	}
	return time.FixedZone("", secs), true
}

func inZone(p *epg.Programme, loc *time.Location) {
	if p == nil {
		return
	}
	p.Start = p.Start.In(loc)
	p.End = p.End.In(loc)
}

func writeNotFound(w http.ResponseWriter, id string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": notFoundMessage, "channel_id": id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
