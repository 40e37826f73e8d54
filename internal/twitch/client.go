// Package twitch talks to the three Twitch surfaces the clip pipeline needs:
// the OAuth identity endpoint (client-credentials tokens), the GQL endpoint
// (signed playback grants for VODs) and the Helix API (streams, clips).
package twitch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/clipforge/clipforge-server/internal/logging"
)

const (
	DefaultAuthBaseURL  = "https://id.twitch.tv"
	DefaultGQLBaseURL   = "https://gql.twitch.tv"
	DefaultHelixBaseURL = "https://api.twitch.tv/helix"

	// Persisted query hash for PlaybackAccessToken_Template. Stable across
	// player releases; changing it requires a matching GQL schema change.
	playbackQueryHash = "0828119ded1c13477966434e15800ff57ddacf13ba1911c129dc2200705b0712"

	maxErrorBodyBytes = 4096
)

// PlaybackGrant is a short-lived signed pair authorizing read access to one
// VOD's media manifest. Both fields are required.
type PlaybackGrant struct {
	Value     string
	Signature string
}

// Client issues authenticated requests against Twitch. Base URLs are
// injectable so tests can point it at local servers.
type Client struct {
	clientID     string
	clientSecret string
	authBaseURL  string
	gqlBaseURL   string
	helixBaseURL string
	httpClient   *http.Client
	logger       *slog.Logger
}

type ClientOption func(*Client)

func WithAuthBaseURL(u string) ClientOption  { return func(c *Client) { c.authBaseURL = u } }
func WithGQLBaseURL(u string) ClientOption   { return func(c *Client) { c.gqlBaseURL = u } }
func WithHelixBaseURL(u string) ClientOption { return func(c *Client) { c.helixBaseURL = u } }

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(clientID, clientSecret string, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		authBaseURL:  DefaultAuthBaseURL,
		gqlBaseURL:   DefaultGQLBaseURL,
		helixBaseURL: DefaultHelixBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ClientID() string { return c.clientID }

// HasCredentials reports whether both the client id and secret are set.
// The pipeline checks this before touching the network so a misconfigured
// deployment fails with a config error, not an upstream one.
func (c *Client) HasCredentials() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// AppAccessToken exchanges the client id/secret for a fresh app access token.
// Tokens are deliberately never cached: they are cheap to mint and a fresh
// token per pipeline run can never be expired mid-run.
func (c *Client) AppAccessToken(ctx context.Context) (string, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"client_credentials"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.authBaseURL+"/oauth2/token", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", &CredentialError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &CredentialError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var payload struct {
		AccessToken string `json:"access_token"`
		Message     string `json:"message"`
		Error       string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || payload.AccessToken == "" {
		msg := payload.Message
		if msg == "" {
			msg = payload.Error
		}
		if msg == "" {
			msg = "no access_token in response"
		}
		return "", &CredentialError{StatusCode: resp.StatusCode, Message: msg}
	}

	c.logger.Debug("app access token issued", "token", logging.SanitizeToken(payload.AccessToken))
	return payload.AccessToken, nil
}

// gqlPlaybackResponse is the object-shaped GQL response. Twitch occasionally
// wraps the same document in a single-element array, so PlaybackGrant parses
// both shapes explicitly rather than probing properties dynamically.
type gqlPlaybackResponse struct {
	Data struct {
		VideoPlaybackAccessToken struct {
			Value     string `json:"value"`
			Signature string `json:"signature"`
		} `json:"videoPlaybackAccessToken"`
	} `json:"data"`
}

// PlaybackGrant requests a signed playback access token for a VOD via the
// persisted GQL query. Fatal on any failure; not retried.
func (c *Client) PlaybackGrant(ctx context.Context, vodID, appToken string) (PlaybackGrant, error) {
	reqBody := map[string]any{
		"operationName": "PlaybackAccessToken_Template",
		"variables": map[string]any{
			"isLive":     false,
			"login":      "",
			"isVod":      true,
			"vodID":      vodID,
			"playerType": "site",
		},
		"extensions": map[string]any{
			"persistedQuery": map[string]any{
				"version":    1,
				"sha256Hash": playbackQueryHash,
			},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return PlaybackGrant{}, &AuthorizationError{Message: fmt.Sprintf("marshal request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.gqlBaseURL+"/gql", bytes.NewReader(body))
	if err != nil {
		return PlaybackGrant{}, &AuthorizationError{Message: err.Error()}
	}
	req.Header.Set("Client-Id", c.clientID)
	req.Header.Set("Authorization", "Bearer "+appToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return PlaybackGrant{}, &AuthorizationError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return PlaybackGrant{}, &AuthorizationError{
			StatusCode: resp.StatusCode,
			Message:    truncate(string(respBody), 200),
		}
	}

	grant, ok := parsePlaybackResponse(respBody)
	if !ok {
		return PlaybackGrant{}, &AuthorizationError{Message: "playback token missing value or signature"}
	}

	c.logger.Debug("playback grant issued", "vod_id", vodID,
		"signature", logging.SanitizeToken(grant.Signature))
	return grant, nil
}

// parsePlaybackResponse unwraps both known response shapes: a bare object and
// a single-element array wrapping the same object.
func parsePlaybackResponse(body []byte) (PlaybackGrant, bool) {
	var obj gqlPlaybackResponse
	if err := json.Unmarshal(body, &obj); err == nil {
		if g := grantFrom(obj); g.Value != "" && g.Signature != "" {
			return g, true
		}
	}

	var arr []gqlPlaybackResponse
	if err := json.Unmarshal(body, &arr); err == nil && len(arr) > 0 {
		if g := grantFrom(arr[0]); g.Value != "" && g.Signature != "" {
			return g, true
		}
	}

	return PlaybackGrant{}, false
}

func grantFrom(r gqlPlaybackResponse) PlaybackGrant {
	return PlaybackGrant{
		Value:     r.Data.VideoPlaybackAccessToken.Value,
		Signature: r.Data.VideoPlaybackAccessToken.Signature,
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
