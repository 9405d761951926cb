package xmltv

import (
	"strings"
	"time"
)

const stampLayout = "20060102150405"

// ParseTime decodes an XMLTV timestamp "YYYYMMDDhhmmss [+-]HHMM" to UTC.
// A missing or malformed offset falls back to defaultOffset seconds east of UTC.
// It fails only when the 14-digit local part is malformed.
func ParseTime(s string, defaultOffset int) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len(stampLayout) {
		return time.Time{}, false
	}
	stamp := s[:len(stampLayout)]
	for i := 0; i < len(stamp); i++ {
		if stamp[i] < '0' || stamp[i] > '9' {
			return time.Time{}, false
		}
	}
	local, err := time.ParseInLocation(stampLayout, stamp, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	offset, ok := ParseOffset(s[len(stampLayout):])
	if !ok {
		offset = defaultOffset
	}
	return local.Add(-time.Duration(offset) * time.Second).UTC(), true
}

// ParseOffset decodes "[+-]HHMM" into seconds east of UTC. The sign is
// optional; anything after the four digits is ignored.
func ParseOffset(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	sign := 1
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1
		s = s[1:]
	}
	if len(s) < 4 {
		return 0, false
	}
	for i := 0; i < 4; i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	hours := int(s[0]-'0')*10 + int(s[1]-'0')
	minutes := int(s[2]-'0')*10 + int(s[3]-'0')
	if hours > 23 || minutes > 59 {
		return 0, false
	}
	return sign * (hours*3600 + minutes*60), true
}
