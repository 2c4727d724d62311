package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/atinyakov/mecsync/internal/client/api"
	"github.com/atinyakov/mecsync/internal/client/audit"
	"github.com/atinyakov/mecsync/internal/client/cache"
	"github.com/atinyakov/mecsync/internal/client/notify"
	"github.com/atinyakov/mecsync/internal/client/transport"
	"github.com/atinyakov/mecsync/internal/config"
	"github.com/atinyakov/mecsync/internal/logger"
)

// app is one client session wired over the document endpoint.
type app struct {
	cfg     config.ClientConfig
	log     *zap.Logger
	out     io.Writer
	cache   *cache.Cache
	audit   *audit.Appender
	channel *notify.Channel
	api     *api.Client
}

// lockedWriter serialises writes from the shell and background goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

var (
	alertColor   = color.New(color.FgRed, color.Bold)
	successColor = color.New(color.FgGreen)
)

func newApp(cfg config.ClientConfig, out io.Writer) (*app, error) {
	l := logger.New()
	if err := l.Init(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log := l.Log
	out = &lockedWriter{w: out}

	httpClient, err := transport.NewHTTPClient(cfg.CAFile, cfg.Timeout.Std())
	if err != nil {
		return nil, err
	}
	t := transport.New(httpClient,
		transport.WithRetries(cfg.Retries),
		transport.WithBackoff(cfg.Backoff.Std()),
		transport.WithLogger(log),
	)

	opts := []cache.Option{
		cache.WithLogger(log),
		cache.WithAlerter(cache.AlertFunc(func(msg string) { alertColor.Fprintln(out, msg) })),
	}
	if cfg.SnapshotPath != "" {
		opts = append(opts, cache.WithSnapshot(cfg.SnapshotPath))
	}
	c := cache.New(cfg.Endpoint, t, opts...)

	ch, err := notify.Open(cfg.ChannelDir, cfg.ChannelName, log)
	if err != nil {
		return nil, err
	}
	rec := audit.New(c, audit.WithLogger(log))

	client := api.New(c, rec, ch,
		api.WithLogger(log),
		api.WithSeedUsers(cfg.SeedUsers),
		api.WithGatewayPassword(cfg.GatewayPassword),
	)
	return &app{cfg: cfg, log: log, out: out, cache: c, audit: rec, channel: ch, api: client}, nil
}

// checkVersion warns when this build is older than the minimum the settings
// require. It never blocks the session.
func (a *app) checkVersion(ctx context.Context) {
	err := a.api.System.CheckVersion(ctx, a.cfg.AppVersion)
	if errors.Is(err, api.ErrUpdateRequired) {
		alertColor.Fprintf(a.out, "Atualização obrigatória: a versão %s não é mais suportada.\n", a.cfg.AppVersion)
	} else if err != nil {
		a.log.Warn("version check failed", zap.Error(err))
	}
}

// Close writes pending audit entries and releases the session resources.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.audit.Flush(ctx); err != nil {
		a.log.Warn("audit entries not written", zap.Error(err))
	}
	a.audit.Close()
	_ = a.channel.Close()
	_ = a.log.Sync()
}
