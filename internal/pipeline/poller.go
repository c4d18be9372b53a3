package pipeline

import (
	"context"
	"log"
	"time"
)

type refresher interface {
	RefreshAllFeeds(ctx context.Context) (int, error)
}

// Poller triggers a refresh of every feed on a fixed interval.
type Poller struct {
	target   refresher
	interval time.Duration
	logger   *log.Logger
}

func NewPoller(target refresher, interval time.Duration, logger *log.Logger) *Poller {
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{target: target, interval: interval, logger: logger}
}

// Run refreshes once immediately, then on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	if p.interval <= 0 {
		p.logger.Println("Periodic refresh disabled")
		return
	}

	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if _, err := p.target.RefreshAllFeeds(ctx); err != nil {
		p.logger.Printf("Periodic refresh failed: %v", err)
	}
}
