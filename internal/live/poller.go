// Package live keeps an in-memory snapshot of which of the org's channels
// are currently streaming, refreshed on a cron schedule.
package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/clipforge/clipforge-server/internal/twitch"
)

// StreamSource is what the poller needs from the Twitch client.
type StreamSource interface {
	HasCredentials() bool
	AppAccessToken(ctx context.Context) (string, error)
	LiveStreams(ctx context.Context, appToken string, logins []string) ([]twitch.Stream, error)
}

// Snapshot is the last known live status for the configured channels.
type Snapshot struct {
	Live      bool            `json:"live"`
	Streams   []twitch.Stream `json:"streams"`
	CheckedAt time.Time       `json:"checked_at"`
	Error     string          `json:"error,omitempty"`
}

// Poller refreshes the snapshot on a schedule.
type Poller struct {
	source   StreamSource
	channels []string
	schedule string
	logger   *slog.Logger
	cron     *cron.Cron

	mu       sync.RWMutex
	snapshot Snapshot
}

func NewPoller(source StreamSource, channels []string, schedule string, logger *slog.Logger) *Poller {
	return &Poller{
		source:   source,
		channels: channels,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start schedules the polling job and runs one refresh immediately so the
// first request after boot does not see an empty snapshot.
func (p *Poller) Start() error {
	if len(p.channels) == 0 {
		p.logger.Info("live poller disabled, no channels configured")
		return nil
	}

	if _, err := p.cron.AddFunc(p.schedule, p.refresh); err != nil {
		return err
	}

	go p.refresh()
	p.cron.Start()

	p.logger.Info("live poller started", "channels", p.channels, "schedule", p.schedule)
	return nil
}

// Stop halts scheduling and waits for a running refresh to finish.
func (p *Poller) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
}

// Current returns the latest snapshot.
func (p *Poller) Current() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

func (p *Poller) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap := Snapshot{CheckedAt: time.Now().UTC()}

	streams, err := p.poll(ctx)
	if err != nil {
		p.logger.Warn("live status refresh failed", "error", err)
		snap.Error = err.Error()
	} else {
		snap.Streams = streams
		snap.Live = len(streams) > 0
	}

	p.mu.Lock()
	p.snapshot = snap
	p.mu.Unlock()
}

func (p *Poller) poll(ctx context.Context) ([]twitch.Stream, error) {
	if !p.source.HasCredentials() {
		return nil, errors.New("twitch credentials not configured")
	}

	token, err := p.source.AppAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return p.source.LiveStreams(ctx, token, p.channels)
}
