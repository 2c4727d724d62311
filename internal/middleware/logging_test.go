package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// dummyHandler is a placeholder that records if it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
	status int
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	if d.status != 0 {
		w.WriteHeader(d.status)
	}
	_, _ = w.Write([]byte("hello"))
}

func TestCorrelation_GeneratesID(t *testing.T) {
	dummy := &dummyHandler{}
	h := Correlation(dummy)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	h.ServeHTTP(rec, req)

	if !dummy.called {
		t.Fatal("expected next handler to be called")
	}
	id := GetCorrelationID(dummy.ctx)
	if id == "" {
		t.Fatal("expected a generated correlation id")
	}
	if got := rec.Header().Get(CorrelationHeader); got != id {
		t.Errorf("response header = %q; want %q", got, id)
	}
}

func TestCorrelation_KeepsClientID(t *testing.T) {
	dummy := &dummyHandler{}
	h := Correlation(dummy)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "abc-123")

	h.ServeHTTP(rec, req)

	if got := GetCorrelationID(dummy.ctx); got != "abc-123" {
		t.Errorf("correlation id = %q; want %q", got, "abc-123")
	}
}

func TestGetCorrelationID_Missing(t *testing.T) {
	if got := GetCorrelationID(context.Background()); got != "" {
		t.Errorf("GetCorrelationID = %q; want empty", got)
	}
}

func TestWithRequestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := Correlation(WithRequestLogging(zap.New(core))(&dummyHandler{status: http.StatusCreated}))

	req := httptest.NewRequest(http.MethodPost, "/?t=1", nil)
	req.Header.Set(CorrelationHeader, "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["method"] != http.MethodPost || fields["uri"] != "/?t=1" {
		t.Errorf("unexpected fields %v", fields)
	}
	if fields["status"] != int64(http.StatusCreated) || fields["size"] != int64(5) {
		t.Errorf("unexpected status/size %v/%v", fields["status"], fields["size"])
	}
	if fields["correlation_id"] != "req-1" {
		t.Errorf("correlation_id = %v; want req-1", fields["correlation_id"])
	}
}

func TestWithRequestLogging_ServerErrorLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := WithRequestLogging(zap.New(core))(&dummyHandler{status: http.StatusInternalServerError})

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if logs.FilterLevelExact(zapcore.ErrorLevel).Len() != 1 {
		t.Errorf("expected an error-level entry, got %v", logs.All())
	}
}
