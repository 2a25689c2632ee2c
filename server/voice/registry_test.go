package voice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddRemove(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Count())

	r.Add(&Connection{ID: "c1", ConnectedAt: time.Now()})
	r.Add(&Connection{ID: "c2", ConnectedAt: time.Now()})
	assert.Equal(t, 2, r.Count())

	assert.True(t, r.Remove("c1"))
	assert.False(t, r.Remove("c1"), "second remove is a no-op")
	assert.Equal(t, 1, r.Count())
}

func TestRegistryTotalCharacters(t *testing.T) {
	r := NewRegistry()

	c1 := &Connection{ID: "c1", ConnectedAt: time.Now()}
	c1.AddCharacters(100)
	c2 := &Connection{ID: "c2", ConnectedAt: time.Now()}
	c2.AddCharacters(250)

	r.Add(c1)
	r.Add(c2)
	assert.Equal(t, int64(350), r.TotalCharacters())

	r.Remove("c1")
	assert.Equal(t, int64(250), r.TotalCharacters())
}

func TestRegistrySnapshot(t *testing.T) {
	r := NewRegistry()

	conn := &Connection{
		ID:          "c1",
		SessionID:   "s1",
		ClientAddr:  "203.0.113.7",
		ConnectedAt: time.Now().Add(-5 * time.Second),
	}
	conn.AddCharacters(42)
	r.Add(conn)

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "c1", snap[0].ID)
	assert.Equal(t, "s1", snap[0].SessionID)
	assert.Equal(t, "203.0.113.7", snap[0].ClientAddr)
	assert.Equal(t, int64(42), snap[0].CharactersUsed)
	assert.GreaterOrEqual(t, snap[0].DurationSeconds, int64(4))
}
