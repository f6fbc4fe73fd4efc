// Package heartbeat pings the configured healthchecks URLs after a
// successful run, and parses the cron schedule used by verify watch mode.
// Pings are best-effort: a dead monitoring endpoint must never fail a
// deploy that otherwise succeeded.
package heartbeat

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
)

// MinWatchInterval is the minimum allowed interval between watch runs.
const MinWatchInterval = time.Minute

// Parser accepts standard 5-field cron expressions.
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule parses a cron expression for watch mode.
func ParseSchedule(expr string) (cron.Schedule, error) {
	schedule, err := Parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule, nil
}

// ValidateSchedule rejects expressions that would hammer the cluster.
func ValidateSchedule(expr string) error {
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	next := schedule.Next(now)
	interval := schedule.Next(next).Sub(next)
	if interval < MinWatchInterval {
		return fmt.Errorf("watch schedule interval %v is less than minimum allowed %v", interval, MinWatchInterval)
	}
	return nil
}

// Pinger issues heartbeat requests.
type Pinger struct {
	Client *http.Client
}

// NewPinger returns a Pinger with a short per-request timeout.
func NewPinger() *Pinger {
	return &Pinger{Client: &http.Client{Timeout: 10 * time.Second}}
}

// Ping signals one heartbeat URL. Any non-5xx response counts as
// delivered.
func (p *Pinger) Ping(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("invalid heartbeat URL %q: %w", url, err)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("heartbeat request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("heartbeat endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// PingAll signals every configured component URL. Empty URLs are skipped
// silently (the component's heartbeat is simply not configured); delivery
// failures are logged and swallowed.
func (p *Pinger) PingAll(ctx context.Context, logger logr.Logger, urls map[string]string) {
	for component, url := range urls {
		if url == "" {
			continue
		}
		if err := p.Ping(ctx, url); err != nil {
			logger.Info("Warning: heartbeat ping failed", "component", component, "error", err.Error())
			continue
		}
		logger.V(1).Info("Heartbeat delivered", "component", component)
	}
}
