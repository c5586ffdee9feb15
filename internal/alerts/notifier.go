package alerts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sender is the transport a Notifier speaks over.
type Sender interface {
	Send(ctx context.Context, message string) error
	SendMarkdown(ctx context.Context, message string) error
}

const defaultAlertWindow = time.Minute

// Notifier adds per-key throttling on top of a Sender so a flapping
// condition does not flood the channel. Delivery failures are logged and
// swallowed; alerting must never take the hedge loop down.
type Notifier struct {
	sender Sender
	window time.Duration
	log    *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	fired    map[string]struct{}
	lastSent map[string]time.Time
}

func NewNotifier(sender Sender, log *zap.Logger) *Notifier {
	return &Notifier{
		sender:   sender,
		window:   defaultAlertWindow,
		log:      log,
		now:      time.Now,
		fired:    make(map[string]struct{}),
		lastSent: make(map[string]time.Time),
	}
}

// Once sends at most one message per key until Reset clears it. Used for
// edge-triggered state transitions like entering or leaving safe mode.
func (n *Notifier) Once(ctx context.Context, key, message string) {
	n.mu.Lock()
	if _, ok := n.fired[key]; ok {
		n.mu.Unlock()
		return
	}
	n.fired[key] = struct{}{}
	n.mu.Unlock()
	n.deliver(ctx, key, message, false)
}

// Reset re-arms a Once key.
func (n *Notifier) Reset(key string) {
	n.mu.Lock()
	delete(n.fired, key)
	n.mu.Unlock()
}

// Alert sends at most one message per key per throttle window. Used for
// recurring conditions evaluated every cycle, like a funding breach.
func (n *Notifier) Alert(ctx context.Context, key, message string) {
	n.mu.Lock()
	now := n.now()
	if last, ok := n.lastSent[key]; ok && now.Sub(last) < n.window {
		n.mu.Unlock()
		return
	}
	n.lastSent[key] = now
	n.mu.Unlock()
	n.deliver(ctx, key, message, false)
}

// Report sends an unthrottled Markdown message.
func (n *Notifier) Report(ctx context.Context, message string) {
	n.deliver(ctx, "report", message, true)
}

func (n *Notifier) deliver(ctx context.Context, key, message string, markdown bool) {
	var err error
	if markdown {
		err = n.sender.SendMarkdown(ctx, message)
	} else {
		err = n.sender.Send(ctx, message)
	}
	if err != nil {
		n.log.Warn("notification delivery failed", zap.String("key", key), zap.Error(err))
	}
}
