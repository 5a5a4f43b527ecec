package observe

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlive_Self(t *testing.T) {
	assert.True(t, Alive(os.Getpid()))
}

func TestAlive_NonPositive(t *testing.T) {
	assert.False(t, Alive(0))
	assert.False(t, Alive(-1))
}

func TestAlive_ReapedChild(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 0")
	require.NoError(t, cmd.Run())

	assert.False(t, Alive(cmd.Process.Pid))
}

func TestWatcher_WaitReturnsWhenProcessExits(t *testing.T) {
	cmd := exec.Command("sleep", "0.2")
	require.NoError(t, cmd.Start())
	go cmd.Wait()

	w := NewWatcher(cmd.Process.Pid, 20*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, w.Wait(ctx))
	assert.False(t, w.Exists())
}

func TestWatcher_WaitHonoursContext(t *testing.T) {
	w := NewWatcher(os.Getpid(), 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, w.Wait(ctx), context.DeadlineExceeded)
}

func TestTiming(t *testing.T) {
	tm := NewTiming()
	time.Sleep(5 * time.Millisecond)
	tm.Complete()

	d := tm.Duration()
	assert.GreaterOrEqual(t, d, 5*time.Millisecond)
	assert.Equal(t, d, tm.Duration(), "duration is frozen after Complete")
}

func TestStats_Self(t *testing.T) {
	stats, err := Stats(context.Background(), os.Getpid())
	require.NoError(t, err)

	assert.Equal(t, os.Getpid(), stats.PID)
	assert.NotEmpty(t, stats.Name)
	assert.Greater(t, stats.RSSBytes, uint64(0))
	assert.False(t, stats.StartedAt.IsZero())
}
