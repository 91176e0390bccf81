package eventplane

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odin-social/timeline-server/internal/model"
	"github.com/odin-social/timeline-server/internal/streamutil"
)

func TestNewFriendsOfUserFiltersByDirectedFirstElement(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	b := newFakeBus()
	u, other, f1, f2 := model.NewUserID(), model.NewUserID(), model.NewUserID(), model.NewUserID()
	stream := NewFriendsOfUser(ctx, b, u, testMetrics)

	go func() {
		require.NoError(t, PublishFriendshipNew(b, other, f1)) // not u, filtered out
		require.NoError(t, PublishFriendshipNew(b, u, f2))
	}()

	got := <-stream
	require.False(t, got.IsErr())
	require.Equal(t, f2, got.Value)
}

func TestFriendshipUpdatesTagsBothSubjects(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	b := newFakeBus()
	stream := FriendshipUpdates(ctx, b, testMetrics)
	a, f := model.NewUserID(), model.NewUserID()

	go func() { require.NoError(t, PublishFriendshipNew(b, a, f)) }()
	got1 := <-stream
	require.False(t, got1.IsErr())
	require.Equal(t, model.FriendshipNew, got1.Value.Kind)

	go func() { require.NoError(t, PublishFriendshipRemoved(b, a, f)) }()
	got2 := <-stream
	require.False(t, got2.IsErr())
	require.Equal(t, model.FriendshipRemoved, got2.Value.Kind)
}

// TestRealTimeFilteringScenario reproduces spec.md's concrete scenario 4:
// subscriber u with initial friends {a}; bus sequence msg(a,"hi"),
// friendship.new(u,b), msg(b,"yo"), friendship.removed(u,a), msg(a,"bye").
// Emitted: msg(a,"hi"), msg(b,"yo"). msg(a,"bye") is dropped.
func TestRealTimeFilteringScenario(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	b := newFakeBus()
	u, a, fB := model.NewUserID(), model.NewUserID(), model.NewUserID()

	userUpdates := make(chan streamutil.Result[model.FriendUpdate], 4)
	userUpdates <- streamutil.Ok(model.FriendUpdate{Kind: model.FriendNew, Friend: a})

	liveUpdates := FriendshipUpdates(ctx, b, testMetrics)
	go func() {
		for upd := range liveUpdates {
			if upd.IsErr() {
				continue
			}
			if upd.Value.A != u {
				continue
			}
			var kind model.FriendUpdateKind
			switch upd.Value.Kind {
			case model.FriendshipNew:
				kind = model.FriendNew
			case model.FriendshipRemoved:
				kind = model.FriendRemoved
			}
			userUpdates <- streamutil.Ok(model.FriendUpdate{Kind: kind, Friend: upd.Value.B})
		}
	}()

	out := NewMessagesFromUsers(ctx, b, userUpdates, testMetrics)

	msgHi := model.NewMessage(a, time.Now(), "hi")
	msgYo := model.NewMessage(fB, time.Now().Add(time.Millisecond), "yo")
	msgBye := model.NewMessage(a, time.Now().Add(2*time.Millisecond), "bye")

	require.NoError(t, PublishMessage(b, msgHi))
	first := <-out
	require.False(t, first.IsErr())
	require.Equal(t, "hi", first.Value.Content)

	require.NoError(t, PublishFriendshipNew(b, u, fB))
	time.Sleep(20 * time.Millisecond) // let the reducer apply the membership update

	require.NoError(t, PublishMessage(b, msgYo))
	second := <-out
	require.False(t, second.IsErr())
	require.Equal(t, "yo", second.Value.Content)

	require.NoError(t, PublishFriendshipRemoved(b, u, a))
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, PublishMessage(b, msgBye))

	select {
	case v := <-out:
		t.Fatalf("expected msg(a,\"bye\") to be dropped, got %+v", v)
	case <-time.After(50 * time.Millisecond):
	}
}
