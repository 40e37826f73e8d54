package twitch

import (
	"fmt"
	"net/url"
)

const usherBaseURL = "https://usher.ttvnw.net"

// ManifestURL builds the HLS manifest URL for a VOD from its id and a signed
// playback grant. Pure string construction; the fixed capability flags match
// what the web player sends.
func ManifestURL(vodID string, grant PlaybackGrant) string {
	params := url.Values{
		"allow_source":               {"true"},
		"allow_audio_only":           {"true"},
		"allow_spectre":              {"true"},
		"player":                     {"twitchweb"},
		"playlist_include_framerate": {"true"},
		"supported_codecs":           {"avc1"},
		"sig":                        {grant.Signature},
		"token":                      {grant.Value},
	}
	return fmt.Sprintf("%s/vod/%s.m3u8?%s", usherBaseURL, url.PathEscape(vodID), params.Encode())
}
