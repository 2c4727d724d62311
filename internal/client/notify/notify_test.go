package notify

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/atinyakov/mecsync/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receive(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-events:
		require.True(t, ok, "channel closed")
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	return Event{}
}

func TestChannel_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(dir, DefaultName, nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(dir, DefaultName, nil)
	require.NoError(t, err)
	defer b.Close()
	assert.NotEqual(t, a.Sender(), b.Sender())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := a.Listen(ctx)
	require.NoError(t, err)

	// own events are not delivered back
	a.Publish(UsersUpdate, models.KeyUsers, 3)
	b.Publish(PartsUpdate, models.KeyParts, 7)

	e := receive(t, events)
	assert.Equal(t, PartsUpdate, e.Type)
	assert.Equal(t, models.KeyParts, e.Key)
	assert.Equal(t, models.Revision(7), e.Revision)
	assert.Equal(t, b.Sender(), e.Sender)
	assert.NotZero(t, e.Timestamp)

	b.Publish(SystemLockdown, models.KeySettings, 0)
	e = receive(t, events)
	assert.Equal(t, SystemLockdown, e.Type)
}

func TestChannel_OnlyNewEvents(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(dir, "mec", nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(dir, "mec", nil)
	require.NoError(t, err)
	defer b.Close()

	b.Publish(OrdersUpdate, models.KeyOrders, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := a.Listen(ctx)
	require.NoError(t, err)

	b.Publish(FleetUpdate, models.KeyVehicles, 2)
	e := receive(t, events)
	assert.Equal(t, FleetUpdate, e.Type)
}

func TestChannel_SeparateNames(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(dir, "one", nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(dir, "two", nil)
	require.NoError(t, err)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := a.Listen(ctx)
	require.NoError(t, err)

	b.Publish(SalesUpdate, models.KeySales, 0)
	select {
	case e := <-events:
		t.Fatalf("unexpected event %+v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestChannel_CloseEndsListeners(t *testing.T) {
	a, err := Open(t.TempDir(), DefaultName, nil)
	require.NoError(t, err)

	events, err := a.Listen(context.Background())
	require.NoError(t, err)
	require.NoError(t, a.Close())

	_, ok := <-events
	assert.False(t, ok)
}

func TestTailReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.events")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"LOGS_UPDATE","sender":"x"}`+"\n"+`{"type":"SALES`), 0o600))

	r := &tailReader{path: path}
	events, err := r.next()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, LogsUpdate, events[0].Type)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(`_UPDATE","sender":"y"}` + "\nnot json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	events, err = r.next()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, SalesUpdate, events[0].Type)

	// truncation restarts from the top
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"FLEET_UPDATE"}`+"\n"), 0o600))
	events, err = r.next()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, FleetUpdate, events[0].Type)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NotPanics(t, func() { p.Publish(PartsUpdate, models.KeyParts, 1) })
}
