// Package audit appends entries to the capped audit trail stored under the
// document's "logs" key.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/mecsync/internal/client/cache"
	"github.com/atinyakov/mecsync/internal/models"
)

// MaxEntries is how many audit entries the trail keeps.
const MaxEntries = 200

const (
	defaultActorName = "Usuário Ativo"
	defaultActorRole = "System"
	queueSize        = 64
)

// Store is the part of the document cache the appender writes through.
type Store interface {
	Update(ctx context.Context, key string, fn cache.UpdateFunc) error
}

// Appender writes audit entries from a single worker goroutine so that
// entries recorded by concurrent callers are applied one at a time.
type Appender struct {
	store Store
	log   *zap.Logger
	now   func() time.Time

	queue   chan models.SystemLog
	pending sync.WaitGroup
	done    chan struct{}

	mu        sync.RWMutex
	closed    bool
	actorName string
	actorRole string
}

// Option configures an Appender.
type Option func(*Appender)

// WithLogger sets the logger audit failures go to.
func WithLogger(l *zap.Logger) Option {
	return func(a *Appender) { a.log = l }
}

// WithClock overrides the entry timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Appender) { a.now = now }
}

// New starts an appender writing to store. Call Close to stop it.
func New(store Store, opts ...Option) *Appender {
	a := &Appender{
		store:     store,
		log:       zap.NewNop(),
		now:       time.Now,
		queue:     make(chan models.SystemLog, queueSize),
		done:      make(chan struct{}),
		actorName: defaultActorName,
		actorRole: defaultActorRole,
	}
	for _, opt := range opts {
		opt(a)
	}
	go a.run()
	return a
}

// SetActor sets who subsequent entries are attributed to.
func (a *Appender) SetActor(name string, role models.UserRole) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actorName = name
	a.actorRole = string(role)
}

// Record queues an entry and returns immediately. Write failures are logged
// and never reach the caller. When the queue is full the entry is logged and
// dropped.
func (a *Appender) Record(action models.ActionType, module models.Module, description, details string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.log.Warn("audit entry dropped after close", zap.String("description", description))
		return
	}
	entry := models.SystemLog{
		ID:          uuid.NewString(),
		Timestamp:   models.Timestamp(a.now()),
		ActorName:   a.actorName,
		ActorRole:   a.actorRole,
		ActionType:  action,
		Module:      module,
		Description: description,
		Details:     details,
	}
	a.pending.Add(1)
	select {
	case a.queue <- entry:
	default:
		a.pending.Done()
		a.log.Warn("audit queue full, entry dropped",
			zap.String("description", entry.Description),
			zap.String("details", entry.Details))
	}
}

// Append writes entry synchronously, filling in its id and timestamp when
// empty.
func (a *Appender) Append(ctx context.Context, entry models.SystemLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp == "" {
		entry.Timestamp = models.Timestamp(a.now())
	}
	return a.store.Update(ctx, models.KeyLogs, prepend(entry))
}

// Flush waits until every queued entry has been written or ctx is done.
func (a *Appender) Flush(ctx context.Context) error {
	flushed := make(chan struct{})
	go func() {
		a.pending.Wait()
		close(flushed)
	}()
	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes the queued entries and stops the worker.
func (a *Appender) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	<-a.done
}

func (a *Appender) run() {
	defer close(a.done)
	for entry := range a.queue {
		if err := a.store.Update(context.Background(), models.KeyLogs, prepend(entry)); err != nil {
			a.log.Error("Falha ao registrar log", zap.String("description", entry.Description), zap.Error(err))
		}
		a.pending.Done()
	}
}

// prepend puts entry in front of the stored trail and truncates it to
// MaxEntries.
func prepend(entry models.SystemLog) cache.UpdateFunc {
	return func(current json.RawMessage) (any, error) {
		var logs []models.SystemLog
		if current != nil {
			if err := json.Unmarshal(current, &logs); err != nil {
				return nil, err
			}
		}
		logs = append([]models.SystemLog{entry}, logs...)
		if len(logs) > MaxEntries {
			logs = logs[:MaxEntries]
		}
		return logs, nil
	}
}
