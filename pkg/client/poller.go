package client

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/responderhq/opschat/internal/model"
	"github.com/responderhq/opschat/pkg/logger"
)

const (
	// DefaultDirectoryInterval is how often the conversation list refreshes.
	DefaultDirectoryInterval = 10 * time.Second
	// DefaultThreadInterval is how often an open conversation refreshes.
	DefaultThreadInterval = 5 * time.Second
	// DefaultFailureThreshold is how many consecutive poll failures are
	// absorbed before OnError fires.
	DefaultFailureThreshold = 3
)

// PollerConfig tunes a poll loop.
type PollerConfig struct {
	Interval         time.Duration
	FailureThreshold int
	Logger           *logger.Logger

	// OnError is called once the consecutive failure count reaches the
	// threshold, and again on every failure after that until a poll
	// succeeds. May be nil.
	OnError func(error)
}

func (c *PollerConfig) fill(defaultInterval time.Duration) {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.Logger == nil {
		c.Logger = logger.NewNop()
	}
}

// Poller runs a poll function on a fixed interval. Start it when the
// corresponding view opens and stop it when the view closes.
type Poller struct {
	cfg  PollerConfig
	poll func(ctx context.Context) error

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	failures int
}

func newPoller(cfg PollerConfig, defaultInterval time.Duration, poll func(ctx context.Context) error) *Poller {
	cfg.fill(defaultInterval)
	return &Poller{cfg: cfg, poll: poll}
}

// Start begins polling. The first poll runs immediately. Calling Start on
// a running poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx, p.done)
}

// Stop halts polling and waits for the in-flight poll to finish. Safe to
// call on a stopped poller.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.tick(ctx)
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
	err := p.poll(ctx)
	if ctx.Err() != nil {
		return
	}
	if err == nil {
		p.failures = 0
		return
	}

	p.failures++
	p.cfg.Logger.Debug("poll failed",
		zap.Int("consecutive_failures", p.failures),
		zap.Error(err),
	)
	if p.failures >= p.cfg.FailureThreshold && p.cfg.OnError != nil {
		p.cfg.OnError(err)
	}
}

// DirectoryPoller keeps the conversation directory fresh for the list view.
// Each successful poll delivers the full directory to onUpdate.
func (c *Client) DirectoryPoller(cfg PollerConfig, onUpdate func([]model.Conversation)) *Poller {
	return newPoller(cfg, DefaultDirectoryInterval, func(ctx context.Context) error {
		conversations, err := c.Conversations(ctx)
		if err != nil {
			return err
		}
		onUpdate(conversations)
		return nil
	})
}

// ThreadPoller keeps one open conversation fresh. It tracks the last seen
// sequence internally, so each successful poll delivers only new messages.
// Fetching doubles as reading; the server advances the read cursor.
func (c *Client) ThreadPoller(key model.Key, cfg PollerConfig, onUpdate func([]model.Message)) *Poller {
	var since uint64
	return newPoller(cfg, DefaultThreadInterval, func(ctx context.Context) error {
		resp, err := c.Messages(ctx, key, since)
		if err != nil {
			return err
		}
		if resp.LastSequence > since {
			since = resp.LastSequence
		}
		if len(resp.Messages) > 0 {
			onUpdate(resp.Messages)
		}
		return nil
	})
}
