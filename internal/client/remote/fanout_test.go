package remote_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/boardsync/internal/client/remote"
	"github.com/dmitrijs2005/boardsync/internal/client/remote/remotetest"
	"github.com/dmitrijs2005/boardsync/internal/wire"
)

func TestFanout_DeliversToAllSubscribers(t *testing.T) {
	fake := remotetest.NewFakeStore("s1")
	f := remote.NewFanout(fake)
	ctx := context.Background()

	var got1, got2 []string
	cancel1, err := f.Subscribe(ctx, func(e wire.Event) { got1 = append(got1, e.Type) })
	require.NoError(t, err)
	defer cancel1()
	cancel2, err := f.Subscribe(ctx, func(e wire.Event) { got2 = append(got2, e.Type) })
	require.NoError(t, err)
	defer cancel2()

	fake.Emit(wire.Event{Type: wire.EventEntityUpserted})

	assert.Equal(t, []string{wire.EventEntityUpserted}, got1)
	assert.Equal(t, []string{wire.EventEntityUpserted}, got2)
}

func TestFanout_CancelStopsOnlyThatSubscriber(t *testing.T) {
	fake := remotetest.NewFakeStore("s1")
	f := remote.NewFanout(fake)
	ctx := context.Background()

	var got1, got2 int
	cancel1, err := f.Subscribe(ctx, func(e wire.Event) { got1++ })
	require.NoError(t, err)
	cancel2, err := f.Subscribe(ctx, func(e wire.Event) { got2++ })
	require.NoError(t, err)
	defer cancel2()

	cancel1()
	fake.Emit(wire.Event{Type: wire.EventPresenceState})

	assert.Equal(t, 0, got1)
	assert.Equal(t, 1, got2)
}
