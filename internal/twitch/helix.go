package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// Stream is one live broadcast as reported by Helix /streams.
type Stream struct {
	UserLogin   string `json:"user_login"`
	UserName    string `json:"user_name"`
	GameName    string `json:"game_name"`
	Title       string `json:"title"`
	ViewerCount int    `json:"viewer_count"`
	StartedAt   string `json:"started_at"`
}

// Clip is one clip as reported by Helix /clips.
type Clip struct {
	ID              string  `json:"id"`
	URL             string  `json:"url"`
	BroadcasterName string  `json:"broadcaster_name"`
	CreatorName     string  `json:"creator_name"`
	Title           string  `json:"title"`
	ViewCount       int     `json:"view_count"`
	CreatedAt       string  `json:"created_at"`
	ThumbnailURL    string  `json:"thumbnail_url"`
	Duration        float64 `json:"duration"`
}

type helixUser struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

// LiveStreams returns the subset of the given logins that are currently live.
func (c *Client) LiveStreams(ctx context.Context, appToken string, logins []string) ([]Stream, error) {
	if len(logins) == 0 {
		return nil, nil
	}

	q := url.Values{}
	for _, l := range logins {
		q.Add("user_login", l)
	}

	var payload struct {
		Data []Stream `json:"data"`
	}
	if err := c.helixGet(ctx, appToken, "/streams?"+q.Encode(), &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// TopClips resolves the given logins to broadcaster ids, fetches each
// broadcaster's clips created within the last `days` days, and returns the
// merged list sorted by view count descending.
func (c *Client) TopClips(ctx context.Context, appToken string, logins []string, days, first int) ([]Clip, error) {
	if len(logins) == 0 {
		return nil, nil
	}

	q := url.Values{}
	for _, l := range logins {
		q.Add("login", l)
	}

	var usersPayload struct {
		Data []helixUser `json:"data"`
	}
	if err := c.helixGet(ctx, appToken, "/users?"+q.Encode(), &usersPayload); err != nil {
		return nil, err
	}

	startedAt := time.Now().AddDate(0, 0, -days).UTC().Format(time.RFC3339)

	var all []Clip
	for _, u := range usersPayload.Data {
		cq := url.Values{
			"broadcaster_id": {u.ID},
			"first":          {strconv.Itoa(first)},
			"started_at":     {startedAt},
		}

		var clipsPayload struct {
			Data []Clip `json:"data"`
		}
		if err := c.helixGet(ctx, appToken, "/clips?"+cq.Encode(), &clipsPayload); err != nil {
			return nil, err
		}
		all = append(all, clipsPayload.Data...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].ViewCount > all[j].ViewCount
	})
	return all, nil
}

func (c *Client) helixGet(ctx context.Context, appToken, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.helixBaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Client-Id", c.clientID)
	req.Header.Set("Authorization", "Bearer "+appToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errPayload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(body, &errPayload)
		msg := errPayload.Message
		if msg == "" {
			msg = errPayload.Error
		}
		if msg == "" {
			msg = truncate(string(body), 200)
		}
		return fmt.Errorf("helix %s: HTTP %d: %s", path, resp.StatusCode, msg)
	}

	return json.Unmarshal(body, out)
}
