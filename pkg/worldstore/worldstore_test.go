package worldstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/closedform/senseye/pkg/world"
)

func snapshotAt(t time.Time) *world.WorldState {
	ws := world.New(nil)
	ws.GeneratedAt = t
	return ws
}

func TestMemoryStoreEvictsOldest(t *testing.T) {
	m := NewMemoryStore(2)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.Put(base, snapshotAt(base)))
	require.NoError(t, m.Put(base.Add(time.Second), snapshotAt(base.Add(time.Second))))
	require.NoError(t, m.Put(base.Add(2*time.Second), snapshotAt(base.Add(2*time.Second))))

	latest, ok, err := m.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, latest.GeneratedAt.Equal(base.Add(2*time.Second)))

	since, err := m.Since(base.Add(time.Second))
	require.NoError(t, err)
	assert.Len(t, since, 2)
}

func TestMemoryStoreEmpty(t *testing.T) {
	m := NewMemoryStore(4)
	_, ok, err := m.Latest()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiskStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(DiskOptions{DataDir: dir, InMemory: true})
	require.NoError(t, err)
	defer store.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(base, snapshotAt(base)))
	require.NoError(t, store.Put(base.Add(time.Minute), snapshotAt(base.Add(time.Minute))))

	latest, ok, err := store.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, latest.GeneratedAt.Equal(base.Add(time.Minute)))

	since, err := store.Since(base.Add(30 * time.Second))
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.True(t, since[0].GeneratedAt.Equal(base.Add(time.Minute)))
}
