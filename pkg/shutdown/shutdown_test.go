package shutdown

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RunsHooksLIFO(t *testing.T) {
	m := New(time.Second, nil)

	var order []string
	m.Register("first", func(context.Context) error { order = append(order, "first"); return nil })
	m.Register("second", func(context.Context) error { order = append(order, "second"); return nil })

	require.NoError(t, m.Shutdown())
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestManager_ContinuesAfterFailure(t *testing.T) {
	m := New(time.Second, nil)

	ran := false
	m.Register("survivor", func(context.Context) error { ran = true; return nil })
	m.Register("broken", func(context.Context) error { return errors.New("nope") })

	err := m.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.True(t, ran)
}

func TestManager_ShutdownOnlyOnce(t *testing.T) {
	m := New(time.Second, nil)

	calls := 0
	m.Register("count", func(context.Context) error { calls++; return nil })

	require.NoError(t, m.Shutdown())
	require.NoError(t, m.Shutdown())
	assert.Equal(t, 1, calls)
}

func TestManager_TriggerCancelsContext(t *testing.T) {
	m := New(time.Second, nil)
	ctx, cancel := m.Context(context.Background())
	defer cancel()

	m.Trigger()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after Trigger")
	}
	assert.Nil(t, m.Signal())
}

func TestManager_RecordsSignal(t *testing.T) {
	m := New(time.Second, nil)
	ctx, cancel := m.Context(context.Background())
	defer cancel()

	// The manager's handler is installed, so this does not terminate the test.
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after SIGTERM")
	}
	require.Eventually(t, func() bool { return m.Signal() != nil }, time.Second, 10*time.Millisecond)
	assert.Equal(t, syscall.SIGTERM, m.Signal())
}

func TestSignalError_ExitCode(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want int
	}{
		{syscall.SIGINT, 130},
		{syscall.SIGTERM, 143},
	}
	for _, tt := range tests {
		err := &SignalError{Signal: tt.sig}
		assert.Equal(t, tt.want, err.ExitCode(), tt.sig.String())
		assert.Contains(t, err.Error(), tt.sig.String())
	}
}

func TestCloseResource(t *testing.T) {
	c := &closer{}
	require.NoError(t, CloseResource(c)(context.Background()))
	assert.True(t, c.closed)
}

type closer struct{ closed bool }

func (c *closer) Close() error { c.closed = true; return nil }
