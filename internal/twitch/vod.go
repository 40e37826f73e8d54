package twitch

import (
	"net/url"
	"strings"
)

// ParseVODID extracts the numeric video id from a Twitch VOD URL such as
// https://www.twitch.tv/videos/123456789. It returns "" for anything that is
// not a twitch.tv URL with a numeric /videos/<id> path segment.
//
// This is the sole admission gate in front of the clip pipeline: nothing that
// fails here may reach the network or spawn a process.
func ParseVODID(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	u, err := url.Parse(s)
	if err != nil {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	if host != "twitch.tv" && !strings.HasSuffix(host, ".twitch.tv") {
		return ""
	}

	parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	for i, p := range parts {
		if p != "videos" {
			continue
		}
		if i+1 >= len(parts) {
			return ""
		}
		id := parts[i+1]
		if id == "" || !isDigits(id) {
			return ""
		}
		return id
	}

	return ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
