package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/mecsync/internal/config"
	"github.com/atinyakov/mecsync/internal/repository"
	handler "github.com/atinyakov/mecsync/internal/server/handler/http"
	"github.com/atinyakov/mecsync/internal/service"
)

func newTestApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	return newConfiguredApp(t, func(cfg *config.ClientConfig) {
		cfg.SeedUsers[0].Password = "s3nha"
	})
}

func newConfiguredApp(t *testing.T, configure func(*config.ClientConfig)) (*app, *bytes.Buffer) {
	t.Helper()
	svc := service.NewDocumentService(repository.NewMemoryDocumentRepository())
	srv := httptest.NewServer(handler.NewRouter(&handler.DocumentHandler{DocumentService: svc}, zap.NewNop()))
	t.Cleanup(srv.Close)

	cfg := config.DefaultClient()
	cfg.Endpoint = srv.URL + "/"
	cfg.Retries = 1
	cfg.LogLevel = "error"
	cfg.ChannelDir = t.TempDir()
	configure(&cfg)

	out := &bytes.Buffer{}
	a, err := newApp(cfg, out)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, out
}

func runScript(t *testing.T, a *app, lines ...string) {
	t.Helper()
	s := newShell(a, strings.NewReader(strings.Join(lines, "\n")+"\n"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, s.run(ctx))
}

func TestShell_PartsSession(t *testing.T) {
	a, out := newTestApp(t)

	runScript(t, a,
		"login admin.ti@mecsystem.com", "s3nha",
		"part-add", "Filtro de Óleo", "INT-001", "W950", "1", "1", "Filtros SA", "blindado", "89,90",
		`parts status == "Em Estoque"`,
		`parts status == "Sem Estoque"`,
		"whoami",
		"bogus",
		"exit",
	)

	text := out.String()
	assert.Contains(t, text, "Bem-vindo, SysAdmin (TI)")
	assert.Contains(t, text, "INT-001\tFiltro de Óleo\tEm Estoque\t89.90")
	assert.Contains(t, text, "SysAdmin (TI) <admin.ti@mecsystem.com> IT_ADMIN")
	assert.Contains(t, text, "Unknown command")
	assert.Contains(t, text, "Bye")

	require.NoError(t, a.audit.Flush(context.Background()))
	logs, err := a.api.Logs.List(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "Nova peça cadastrada: Filtro de Óleo", logs[0].Description)
}

func TestShell_MaintenanceBlocksNonAdmins(t *testing.T) {
	a, out := newTestApp(t)

	runScript(t, a,
		"login admin.ti@mecsystem.com", "s3nha",
		"user-add", "Carlos", "carlos@mec.com", "abc", "4", "Oficina",
		"maintenance on",
		"logout",
		"login carlos@mec.com", "abc",
		"login carlos@mec.com", "errada",
	)

	text := out.String()
	assert.Contains(t, text, "Sistema em manutenção")
	assert.Contains(t, text, "E-mail ou senha inválidos.")
	assert.Nil(t, a.api.Session())
}

func TestShell_Usage(t *testing.T) {
	a, out := newTestApp(t)

	runScript(t, a, "help", "part-rm", "maintenance maybe", "logs x")

	text := out.String()
	assert.Contains(t, text, "Comandos:")
	assert.Contains(t, text, "Usage: part-rm <id>")
	assert.Contains(t, text, "Usage: maintenance on|off")
	assert.Contains(t, text, "Usage: logs [n]")
}

func TestShell_FactoryCredentials(t *testing.T) {
	a, out := newConfiguredApp(t, func(*config.ClientConfig) {})

	runScript(t, a,
		"gateway", "errada",
		"gateway", "123",
		"login admin.ti@mecsystem.com", "123",
	)

	text := out.String()
	assert.Contains(t, text, "Senha incorreta")
	assert.Contains(t, text, "Acesso liberado")
	assert.Contains(t, text, "Bem-vindo, SysAdmin (TI)")
	require.NotNil(t, a.api.Session())
}
