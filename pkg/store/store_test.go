package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history", "launches.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore_RecordAndGet(t *testing.T) {
	for name, st := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			l := &Launch{
				Service:   "photo-service",
				PID:       4242,
				Command:   "uvicorn main:app",
				LogFile:   "/tmp/photo-service.log",
				StartedAt: time.Now().Truncate(time.Second),
			}
			require.NoError(t, st.RecordLaunch(l))
			require.NotEmpty(t, l.ID)

			got, err := st.GetLaunch(l.ID)
			require.NoError(t, err)
			assert.Equal(t, "photo-service", got.Service)
			assert.Equal(t, 4242, got.PID)
			assert.Equal(t, "/tmp/photo-service.log", got.LogFile)
			assert.True(t, got.StartedAt.Equal(l.StartedAt))
			assert.Nil(t, got.EndedAt)
			assert.Nil(t, got.ExitCode)
		})
	}
}

func TestStore_RecordExit(t *testing.T) {
	for name, st := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			l := &Launch{Service: "reaction-service", PID: 1, Command: "x", StartedAt: time.Now()}
			require.NoError(t, st.RecordLaunch(l))

			ended := time.Now().Add(time.Minute).Truncate(time.Second)
			require.NoError(t, st.RecordExit(l.ID, ended, 3, "error"))

			got, err := st.GetLaunch(l.ID)
			require.NoError(t, err)
			require.NotNil(t, got.EndedAt)
			require.NotNil(t, got.ExitCode)
			assert.True(t, got.EndedAt.Equal(ended))
			assert.Equal(t, 3, *got.ExitCode)
			assert.Equal(t, "error", got.ExitReason)
		})
	}
}

func TestStore_UnknownLaunch(t *testing.T) {
	for name, st := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.GetLaunch("missing")
			assert.ErrorIs(t, err, ErrLaunchNotFound)
			assert.ErrorIs(t, st.RecordExit("missing", time.Now(), 0, "success"), ErrLaunchNotFound)
		})
	}
}

func TestStore_ListNewestFirstWithFilterAndLimit(t *testing.T) {
	for name, st := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Now().Add(-time.Hour).Truncate(time.Second)
			for i, svc := range []string{"photo-service", "photo-service", "photographer-service", "photo-service"} {
				require.NoError(t, st.RecordLaunch(&Launch{
					Service:   svc,
					PID:       100 + i,
					Command:   "cmd",
					StartedAt: base.Add(time.Duration(i) * time.Minute),
				}))
			}

			all, err := st.ListLaunches("", 0)
			require.NoError(t, err)
			assert.Len(t, all, 4)

			photo, err := st.ListLaunches("photo-service", 2)
			require.NoError(t, err)
			require.Len(t, photo, 2)
			assert.Equal(t, 103, photo[0].PID)
			assert.Equal(t, 101, photo[1].PID)
		})
	}
}

func TestStore_Prune(t *testing.T) {
	for name, st := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			now := time.Now()
			require.NoError(t, st.RecordLaunch(&Launch{Service: "a", PID: 1, Command: "x", StartedAt: now.Add(-48 * time.Hour)}))
			require.NoError(t, st.RecordLaunch(&Launch{Service: "a", PID: 2, Command: "x", StartedAt: now}))

			n, err := st.Prune(now.Add(-24 * time.Hour))
			require.NoError(t, err)
			assert.EqualValues(t, 1, n)

			left, err := st.ListLaunches("a", 0)
			require.NoError(t, err)
			require.Len(t, left, 1)
			assert.Equal(t, 2, left[0].PID)
		})
	}
}
