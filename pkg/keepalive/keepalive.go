package keepalive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Pinger periodically requests a URL so hosting platforms that idle out
// quiet services keep the process awake.
type Pinger struct {
	url      string
	interval time.Duration
	client   *http.Client
}

// New creates a Pinger for url.
func New(url string, interval time.Duration) *Pinger {
	return &Pinger{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Run pings on every tick until ctx is cancelled. Failures are logged and
// otherwise ignored.
func (p *Pinger) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.WithFields(log.Fields{"url": p.url, "interval": p.interval}).Info("keep-alive started")
	for {
		select {
		case <-ctx.Done():
			log.Debug("keep-alive stopped")
			return
		case <-ticker.C:
			if err := p.Ping(ctx); err != nil {
				log.WithError(err).Warn("keep-alive ping failed")
			}
		}
	}
}

// Ping issues one request.
func (p *Pinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping %s: %w", p.url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("ping %s: status %d", p.url, resp.StatusCode)
	}
	log.WithField("status", resp.StatusCode).Debug("keep-alive ping ok")
	return nil
}
