package clipper

import "github.com/clipforge/clipforge-server/internal/twitch"

const (
	MinClipLength     = 5
	MaxClipLength     = 120
	DefaultClipLength = 30

	MinClipCount     = 1
	MaxClipCount     = 10
	DefaultClipCount = 3
)

// CutRequest is the raw request body for a clip run.
type CutRequest struct {
	VODURL     string `json:"vodUrl"`
	ClipLength int    `json:"clipLength"`
	ClipCount  int    `json:"clipCount"`
}

// Plan is a validated cut request. Length and count are always in range.
type Plan struct {
	VODID      string
	ClipLength int
	ClipCount  int
}

// ParseRequest validates a CutRequest into a Plan. The VOD URL is the only
// hard gate; out-of-range length/count clamp to the nearest bound and
// missing values fall back to the defaults, so they never fail a request.
func ParseRequest(req CutRequest) (Plan, error) {
	vodID := twitch.ParseVODID(req.VODURL)
	if vodID == "" {
		return Plan{}, &InputError{
			Reason: "please provide a valid Twitch VOD URL like https://www.twitch.tv/videos/123456789",
		}
	}

	return Plan{
		VODID:      vodID,
		ClipLength: clampInt(req.ClipLength, MinClipLength, MaxClipLength, DefaultClipLength),
		ClipCount:  clampInt(req.ClipCount, MinClipCount, MaxClipCount, DefaultClipCount),
	}, nil
}

// clampInt returns fallback for missing values (zero), otherwise clamps n
// into [min, max].
func clampInt(n, min, max, fallback int) int {
	if n == 0 {
		return fallback
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
