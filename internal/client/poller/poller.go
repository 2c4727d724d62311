// Package poller keeps a session's view of the document current: it
// refreshes on a fixed interval and whenever another session announces a
// change.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/mecsync/internal/client/api"
	"github.com/atinyakov/mecsync/internal/client/notify"
	"github.com/atinyakov/mecsync/internal/models"
)

// DefaultInterval is the refresh period.
const DefaultInterval = 10 * time.Second

// Source produces snapshots; *api.Client implements it.
type Source interface {
	Snapshot(ctx context.Context, force bool) (*api.Snapshot, error)
}

// Poller refreshes snapshots in the background. At most one refresh runs at
// a time; triggers arriving while one is in flight are dropped.
type Poller struct {
	src      Source
	interval time.Duration
	events   <-chan notify.Event
	log      *zap.Logger

	onSnapshot  func(*api.Snapshot)
	onDelivered func([]models.Order)
	requester   func() string

	running atomic.Bool
	wg      sync.WaitGroup

	mu   sync.Mutex
	last *api.Snapshot
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the refresh period.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithEvents refreshes whenever an event arrives on events.
func WithEvents(events <-chan notify.Event) Option {
	return func(p *Poller) { p.events = events }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) { p.log = l }
}

// OnSnapshot is called with every successful refresh.
func OnSnapshot(fn func(*api.Snapshot)) Option {
	return func(p *Poller) { p.onSnapshot = fn }
}

// OnDelivered is called with the orders of the user returned by requester
// that were delivered since the previous refresh.
func OnDelivered(requester func() string, fn func([]models.Order)) Option {
	return func(p *Poller) {
		p.requester = requester
		p.onDelivered = fn
	}
}

// New creates a Poller over src.
func New(src Source, opts ...Option) *Poller {
	p := &Poller{
		src:      src,
		interval: DefaultInterval,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run refreshes once immediately, then on every tick and event until ctx is
// done. It waits for an in-flight refresh before returning ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.wg.Wait()

	p.trigger(ctx)
	events := p.events
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.trigger(ctx)
		case e, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			p.log.Debug("refresh requested by another session", zap.String("type", string(e.Type)))
			p.trigger(ctx)
		}
	}
}

func (p *Poller) trigger(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.Tick(ctx)
	}()
}

// Tick runs one refresh unless another is in flight. It reports whether a
// refresh ran.
func (p *Poller) Tick(ctx context.Context) bool {
	if !p.running.CompareAndSwap(false, true) {
		p.log.Debug("refresh skipped, previous one still running")
		return false
	}
	defer p.running.Store(false)

	snap, err := p.src.Snapshot(ctx, true)
	if err != nil {
		p.log.Warn("failed to sync cloud data", zap.Error(err))
		return true
	}

	p.mu.Lock()
	prev := p.last
	p.last = snap
	p.mu.Unlock()

	if prev != nil && p.onDelivered != nil {
		if delivered := DeliveredOrders(prev.Orders, snap.Orders, p.requester()); len(delivered) > 0 {
			p.onDelivered(delivered)
		}
	}
	if p.onSnapshot != nil {
		p.onSnapshot(snap)
	}
	return true
}

// Last returns the most recent snapshot, or nil before the first refresh.
func (p *Poller) Last() *api.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// DeliveredOrders returns the orders of requesterID in next that were known
// in prev with another status and are now delivered. An empty requesterID
// reports nothing.
func DeliveredOrders(prev, next []models.Order, requesterID string) []models.Order {
	if requesterID == "" || len(prev) == 0 {
		return nil
	}
	before := make(map[string]models.OrderStatus, len(prev))
	for _, o := range prev {
		before[o.ID] = o.Status
	}
	var out []models.Order
	for _, o := range next {
		old, ok := before[o.ID]
		if !ok || old == o.Status || o.RequesterID != requesterID {
			continue
		}
		if o.Status == models.OrderDelivered {
			out = append(out, o)
		}
	}
	return out
}
