// Package api exposes typed accessors over the tables of the shared MEC
// document. Every mutation reads the current table, changes it, writes the
// whole document back, records an audit entry and notifies other sessions.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/mecsync/internal/client/cache"
	"github.com/atinyakov/mecsync/internal/client/notify"
	"github.com/atinyakov/mecsync/internal/models"
)

var (
	// ErrNotFound is returned when an update targets a record that does not
	// exist. The stored table is left untouched.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a create reuses an existing id or
	// vehicle prefix.
	ErrDuplicate = errors.New("already exists")

	// ErrMaintenanceMode is returned to non-admin logins while the system is
	// locked down.
	ErrMaintenanceMode = errors.New("MAINTENANCE_MODE")

	// ErrInvalidCredentials is returned when no user matches the email and
	// password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUpdateRequired is returned when the running app is older than the
	// configured minimum version.
	ErrUpdateRequired = errors.New("app update required")
)

// Store is the document cache as seen by the accessors.
type Store interface {
	cache.Fetcher
	FetchRevision(ctx context.Context, force, strict bool) (models.Document, models.Revision, error)
	Update(ctx context.Context, key string, fn cache.UpdateFunc) error
	Revision() models.Revision
}

// Recorder receives audit entries.
type Recorder interface {
	Record(action models.ActionType, module models.Module, description, details string)
	Append(ctx context.Context, entry models.SystemLog) error
	SetActor(name string, role models.UserRole)
}

// Client groups the per-table accessors.
type Client struct {
	store Store
	rec   Recorder
	pub   notify.Publisher
	log   *zap.Logger
	now   func() time.Time

	seedUsers       []models.User
	gatewayPassword string
	bcryptCost      int

	mu      sync.RWMutex
	session *models.User

	Parts    *Parts
	Orders   *Orders
	Users    *Users
	Fleet    *Fleet
	History  *History
	Sales    *Sales
	Diagrams *Diagrams
	Catalog  *Catalog
	System   *System
	Logs     *Logs
	Auth     *Auth
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithSeedUsers sets the built-in accounts merged with stored users at
// login. Accounts without a password are skipped there.
func WithSeedUsers(users []models.User) Option {
	return func(c *Client) { c.seedUsers = append([]models.User(nil), users...) }
}

// WithGatewayPassword sets the gateway password used when the stored
// settings carry none.
func WithGatewayPassword(p string) Option {
	return func(c *Client) { c.gatewayPassword = p }
}

// WithBcryptCost sets the cost used when hashing passwords.
func WithBcryptCost(cost int) Option {
	return func(c *Client) { c.bcryptCost = cost }
}

// WithClock overrides the time source for generated timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New builds a Client over store. rec and pub may be nil.
func New(store Store, rec Recorder, pub notify.Publisher, opts ...Option) *Client {
	c := &Client{
		store:      store,
		rec:        rec,
		pub:        pub,
		log:        zap.NewNop(),
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
	if c.rec == nil {
		c.rec = nopRecorder{}
	}
	if c.pub == nil {
		c.pub = notify.Nop{}
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Parts = &Parts{c}
	c.Orders = &Orders{c}
	c.Users = &Users{c}
	c.Fleet = &Fleet{c}
	c.History = &History{c}
	c.Sales = &Sales{c}
	c.Diagrams = &Diagrams{c}
	c.Catalog = &Catalog{c}
	c.System = &System{c}
	c.Logs = &Logs{c}
	c.Auth = &Auth{c}
	return c
}

// Session returns the user of the last successful login, or nil.
func (c *Client) Session() *models.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	u := *c.session
	return &u
}

func (c *Client) setSession(u models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = &u
}

func (c *Client) actorName() string {
	if u := c.Session(); u != nil {
		return u.Name
	}
	return "System"
}

// changed records an audit entry and notifies other sessions after a
// successful write.
func (c *Client) changed(ev notify.EventType, key string, action models.ActionType, module models.Module, description, details string) {
	c.rec.Record(action, module, description, details)
	c.pub.Publish(ev, key, c.store.Revision())
}

func (c *Client) timestamp() string {
	return models.Timestamp(c.now())
}

// list reads one table.
func list[T any](ctx context.Context, s Store, key string, fallback []T) ([]T, error) {
	v, err := cache.Get(ctx, s, key, fallback, false)
	if err != nil {
		return fallback, err
	}
	if v == nil {
		v = []T{}
	}
	return v, nil
}

// decodeList decodes one table from an already fetched document.
func decodeList[T any](doc models.Document, key string, fallback []T) ([]T, error) {
	v, err := cache.Decode(doc, key, fallback)
	if err != nil {
		return fallback, err
	}
	if v == nil {
		v = []T{}
	}
	return v, nil
}

// getValue reads one singleton key.
func getValue[T any](ctx context.Context, s Store, key string, fallback T) (T, error) {
	return cache.Get(ctx, s, key, fallback, false)
}

// mutate decodes one table, passes it to fn and writes the result, all
// inside a single cache update.
func mutate[T any](ctx context.Context, s Store, key string, fallback []T, fn func([]T) ([]T, error)) error {
	return s.Update(ctx, key, func(current json.RawMessage) (any, error) {
		items := append([]T{}, fallback...)
		if current != nil {
			items = nil
			if err := json.Unmarshal(current, &items); err != nil {
				return nil, fmt.Errorf("decode %q: %w", key, err)
			}
		}
		next, err := fn(items)
		if err != nil {
			return nil, err
		}
		if next == nil {
			next = []T{}
		}
		return next, nil
	})
}

// apply merges the non-nil fields of patch into record (RFC 7386).
func apply[T any](record T, patch any) (T, error) {
	var out T
	orig, err := json.Marshal(record)
	if err != nil {
		return out, err
	}
	p, err := json.Marshal(patch)
	if err != nil {
		return out, err
	}
	merged, err := mergePatch(orig, p)
	if err != nil {
		return out, fmt.Errorf("merge patch: %w", err)
	}
	if err := json.Unmarshal(merged, &out); err != nil {
		return out, err
	}
	return out, nil
}

type nopRecorder struct{}

func (nopRecorder) Record(models.ActionType, models.Module, string, string) {}

func (nopRecorder) Append(context.Context, models.SystemLog) error { return nil }

func (nopRecorder) SetActor(string, models.UserRole) {}
