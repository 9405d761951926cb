package xmltv

import (
	"strings"
	"time"

	"github.com/snapetech/iptvguide/internal/epg"
)

// programme accumulates one <programme> element during the token pass.
type programme struct {
	channel        string
	start, end     time.Time
	startOK, endOK bool

	title, desc, category strings.Builder
	icon                  string

	seenTitle, seenDesc, seenCategory bool
}

// listing reports whether the element is worth keeping and builds it.
func (p *programme) listing(accept map[string]bool) (epg.Programme, bool) {
	title := strings.TrimSpace(p.title.String())
	if title == "" || p.channel == "" {
		return epg.Programme{}, false
	}
	if accept != nil && !accept[p.channel] {
		return epg.Programme{}, false
	}
	if !p.startOK || !p.endOK || !p.start.Before(p.end) {
		return epg.Programme{}, false
	}
	return epg.Programme{
		ID:          epg.ProgrammeID(p.channel, p.start),
		ChannelID:   p.channel,
		Title:       title,
		Description: strings.TrimSpace(p.desc.String()),
		Start:       p.start,
		End:         p.end,
		Category:    strings.TrimSpace(p.category.String()),
		IconURL:     p.icon,
	}, true
}
