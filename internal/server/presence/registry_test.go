package presence

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/boardsync/internal/logging"
	"github.com/dmitrijs2005/boardsync/internal/wire"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestUpdate_HeartbeatKeepsIdentity(t *testing.T) {
	r := NewRegistry(testLogger())

	r.Update("b1", "s1", wire.PresenceUpdate{DisplayName: "Ida", Color: "#f80", Online: true})
	// Heartbeats carry no name.
	r.Update("b1", "s1", wire.PresenceUpdate{Online: true})

	users := r.Snapshot("b1")
	require.Len(t, users, 1)
	assert.Equal(t, "Ida", users[0].DisplayName)
	assert.Equal(t, "#f80", users[0].Color)
	assert.True(t, users[0].Online)
}

func TestSnapshot_ExcludesOffline(t *testing.T) {
	r := NewRegistry(testLogger())

	r.Update("b1", "s1", wire.PresenceUpdate{DisplayName: "Ida", Online: true})
	r.Update("b1", "s2", wire.PresenceUpdate{DisplayName: "Mara", Online: true})
	r.Update("b1", "s2", wire.PresenceUpdate{Online: false})

	users := r.Snapshot("b1")
	require.Len(t, users, 1)
	assert.Equal(t, "s1", users[0].SessionID)
}

func TestSetCursor_IgnoredForOfflineSession(t *testing.T) {
	r := NewRegistry(testLogger())

	r.SetCursor("b1", "ghost", 10, 20)
	assert.Empty(t, r.Snapshot("b1"))

	r.Update("b1", "s1", wire.PresenceUpdate{DisplayName: "Ida", Online: true})
	r.SetCursor("b1", "s1", 10, 20)

	users := r.Snapshot("b1")
	require.Len(t, users, 1)
	require.NotNil(t, users[0].Cursor)
	assert.Equal(t, 10.0, users[0].Cursor.X)
}

func TestDisconnect_RunsFullCleanup(t *testing.T) {
	r := NewRegistry(testLogger())

	r.Update("b1", "s1", wire.PresenceUpdate{DisplayName: "Ida", Online: true})
	r.SetCursor("b1", "s1", 5, 5)
	r.SetDrag("b1", "s1", "rect-1", 5, 5)
	r.SetDrag("b1", "s1", "rect-2", 9, 9)
	r.SetDrag("b1", "s2", "rect-3", 1, 1)

	dropped := r.Disconnect("b1", "s1")

	assert.Empty(t, r.Snapshot("b1"), "disconnected session must go offline")
	require.Len(t, dropped, 2, "only the session's own drags are dropped")

	drags := r.Drags("b1")
	assert.Len(t, drags, 1)
	_, ok := drags["rect-3"]
	assert.True(t, ok)
}

func TestSweepStale_DropsOldDragsOnly(t *testing.T) {
	r := NewRegistry(testLogger(), WithStaleDrag(50*time.Millisecond))

	r.SetDrag("b1", "s1", "old", 1, 1)
	time.Sleep(60 * time.Millisecond)
	r.SetDrag("b1", "s1", "fresh", 2, 2)

	dropped := r.SweepStale(time.Now().UTC())
	require.Len(t, dropped, 1)
	assert.Equal(t, "old", dropped[0].EntityID)

	drags := r.Drags("b1")
	assert.Len(t, drags, 1)
	_, ok := drags["fresh"]
	assert.True(t, ok)
}

func TestStartSweeper_NotifiesDrops(t *testing.T) {
	r := NewRegistry(testLogger(),
		WithStaleDrag(20*time.Millisecond), WithSweepInterval(10*time.Millisecond))
	defer r.Stop()

	drops := make(chan DroppedDrag, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.StartSweeper(ctx, func(d DroppedDrag) { drops <- d })

	r.SetDrag("b1", "s1", "rect-1", 1, 1)

	select {
	case d := <-drops:
		assert.Equal(t, "rect-1", d.EntityID)
	case <-time.After(time.Second):
		t.Fatal("sweeper never dropped the stale drag")
	}
}
