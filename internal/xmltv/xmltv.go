// Package xmltv converts XMLTV guide documents into per-channel schedules.
//
// Parsing is a single forward pass over decoder tokens; the document is never
// materialised, so country-sized guides stay cheap.
package xmltv

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"github.com/snapetech/iptvguide/internal/epg"
)

// MaxSize is the largest guide document Parse accepts (50 MiB).
const MaxSize = 50 * 1024 * 1024

// ErrTooLarge is returned for documents over MaxSize. Nothing is parsed.
var ErrTooLarge = errors.New("xmltv: document exceeds maximum size")

// Result holds the schedules from one parse and the display-name index
// (lowercased display name to XMLTV channel id, first occurrence wins).
type Result struct {
	Schedules    map[string]epg.Schedule
	DisplayNames map[string]string
}

// Programmes is the total number of programmes across all schedules.
func (r *Result) Programmes() int {
	n := 0
	for _, s := range r.Schedules {
		n += len(s.Programmes)
	}
	return n
}

// Parse reads an XMLTV document. When channels is non-empty only programmes for
// those channel ids are kept. defaultOffset (seconds east of UTC) applies to
// timestamps without a usable offset.
func Parse(data []byte, channels []string, defaultOffset int) (*Result, error) {
	if len(data) > MaxSize {
		return nil, ErrTooLarge
	}
	res := &Result{
		Schedules:    make(map[string]epg.Schedule),
		DisplayNames: make(map[string]string),
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return res, nil
	}

	var accept map[string]bool
	if len(channels) > 0 {
		accept = make(map[string]bool, len(channels))
		for _, id := range channels {
			accept[id] = true
		}
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	// Non-strict: a stray '&' or unknown entity stays literal text and a
	// mismatched end tag closes the open element.
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel
	if utf8.Valid(data) {
		// A declared charset on a body that is already UTF-8 is a mislabel.
		dec.CharsetReader = passThrough
	}

	var (
		inChannel, inDisplayName bool
		channelID                string
		displayName              strings.Builder

		inProgramme bool
		cur         programme
		text        *strings.Builder
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xmltv: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "channel":
				if inProgramme {
					break
				}
				inChannel = true
				channelID = attr(t, "id")
			case "display-name":
				if inChannel {
					inDisplayName = true
					displayName.Reset()
				}
			case "programme":
				inProgramme = true
				cur = programme{channel: attr(t, "channel")}
				cur.start, cur.startOK = ParseTime(attr(t, "start"), defaultOffset)
				cur.end, cur.endOK = ParseTime(attr(t, "stop"), defaultOffset)
			case "title":
				if inProgramme && !cur.seenTitle {
					cur.seenTitle = true
					text = &cur.title
				}
			case "desc":
				if inProgramme && !cur.seenDesc {
					cur.seenDesc = true
					text = &cur.desc
				}
			case "category":
				if inProgramme && !cur.seenCategory {
					cur.seenCategory = true
					text = &cur.category
				}
			case "icon":
				if inProgramme && cur.icon == "" {
					cur.icon = strings.TrimSpace(attr(t, "src"))
				}
			}
		case xml.CharData:
			switch {
			case inDisplayName:
				displayName.Write(t)
			case text != nil:
				text.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "display-name":
				if inDisplayName {
					inDisplayName = false
					name := strings.ToLower(strings.TrimSpace(displayName.String()))
					if name != "" && channelID != "" {
						if _, seen := res.DisplayNames[name]; !seen {
							res.DisplayNames[name] = channelID
						}
					}
				}
			case "channel":
				if !inProgramme {
					inChannel = false
					channelID = ""
				}
			case "title", "desc", "category":
				text = nil
			case "programme":
				inProgramme = false
				text = nil
				if p, ok := cur.listing(accept); ok {
					s := res.Schedules[p.ChannelID]
					s.ChannelID = p.ChannelID
					s.Programmes = append(s.Programmes, p)
					res.Schedules[p.ChannelID] = s
				}
			}
		}
	}

	for id, s := range res.Schedules {
		s.Sort()
		res.Schedules[id] = s
	}
	return res, nil
}

func attr(e xml.StartElement, name string) string {
	for _, a := range e.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func passThrough(_ string, in io.Reader) (io.Reader, error) { return in, nil }
