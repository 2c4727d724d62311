// Package notify lets client sessions on one machine tell each other that the
// shared document changed. Events are JSON lines appended to a channel file
// that every session watches.
package notify

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/mecsync/internal/models"
)

// EventType names what changed.
type EventType string

const (
	SystemLockdown EventType = "SYSTEM_LOCKDOWN"
	PartsUpdate    EventType = "PARTS_UPDATE"
	DiagramsUpdate EventType = "DIAGRAMS_UPDATE"
	OrdersUpdate   EventType = "ORDERS_UPDATE"
	UsersUpdate    EventType = "USERS_UPDATE"
	FleetUpdate    EventType = "FLEET_UPDATE"
	HistoryUpdate  EventType = "HISTORY_UPDATE"
	SalesUpdate    EventType = "SALES_UPDATE"
	LogsUpdate     EventType = "LOGS_UPDATE"
)

// DefaultName is the channel every session joins unless configured otherwise.
const DefaultName = "autoparts_cloud_sync"

// maxFileSize is the size past which the next publish starts the file over.
const maxFileSize = 1 << 20

// Event is one notification. Timestamp is in Unix milliseconds.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Key       string          `json:"key,omitempty"`
	Revision  models.Revision `json:"revision,omitempty"`
	Sender    string          `json:"sender"`
}

// Publisher announces document changes.
type Publisher interface {
	Publish(t EventType, key string, rev models.Revision)
}

// Nop discards every event.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(EventType, string, models.Revision) {}

// Channel is one session's handle on a named channel.
type Channel struct {
	path   string
	sender string
	log    *zap.Logger
	now    func() time.Time

	mu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open joins channel name under dir, creating both if needed.
func Open(dir, name string, log *zap.Logger) (*Channel, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if name == "" {
		name = DefaultName
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("channel dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("channel dir: %w", err)
	}
	path := filepath.Join(abs, name+".events")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("channel file: %w", err)
	}
	f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	return &Channel{
		path:   path,
		sender: uuid.NewString(),
		log:    log,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Sender is the id stamped on this session's events.
func (c *Channel) Sender() string { return c.sender }

// Publish appends an event to the channel. Failures are logged and dropped.
func (c *Channel) Publish(t EventType, key string, rev models.Revision) {
	line, err := json.Marshal(Event{
		Type:      t,
		Timestamp: c.now().UnixMilli(),
		Key:       key,
		Revision:  rev,
		Sender:    c.sender,
	})
	if err != nil {
		c.log.Error("failed to encode event", zap.Error(err))
		return
	}
	line = append(line, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if fi, err := os.Stat(c.path); err == nil && fi.Size() > maxFileSize {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(c.path, flags, 0o600)
	if err != nil {
		c.log.Error("failed to publish event", zap.String("type", string(t)), zap.Error(err))
		return
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		c.log.Error("failed to publish event", zap.String("type", string(t)), zap.Error(err))
	}
}

// Listen delivers events published by other sessions from now on. The
// returned channel is closed when ctx is done or the Channel is closed.
func (c *Channel) Listen(ctx context.Context) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch channel: %w", err)
	}
	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch channel: %w", err)
	}

	var offset int64
	if fi, err := os.Stat(c.path); err == nil {
		offset = fi.Size()
	}

	out := make(chan Event, 16)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(out)
		defer watcher.Close()

		r := &tailReader{path: c.path, offset: offset}
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != c.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				events, err := r.next()
				if err != nil {
					c.log.Warn("failed to read channel", zap.Error(err))
					continue
				}
				for _, e := range events {
					if e.Sender == c.sender {
						continue
					}
					select {
					case out <- e:
					case <-ctx.Done():
						return
					case <-c.ctx.Done():
						return
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.log.Warn("channel watcher error", zap.Error(err))
			}
		}
	}()
	return out, nil
}

// Close stops every listener of this Channel.
func (c *Channel) Close() error {
	c.cancel()
	c.wg.Wait()
	return nil
}

// tailReader reads complete lines appended to a file since the last call.
type tailReader struct {
	path    string
	offset  int64
	partial []byte
}

func (r *tailReader) next() ([]Event, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() < r.offset {
		// the file was started over
		r.offset = 0
		r.partial = nil
	}
	if _, err := f.Seek(r.offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	r.offset += int64(len(data))
	data = append(r.partial, data...)

	last := bytes.LastIndexByte(data, '\n')
	if last < 0 {
		r.partial = data
		return nil, nil
	}
	r.partial = append([]byte(nil), data[last+1:]...)

	var events []Event
	sc := bufio.NewScanner(bytes.NewReader(data[:last+1]))
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		return events, err
	}
	return events, nil
}
