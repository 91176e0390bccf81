package timeline

import (
	"context"

	"github.com/odin-social/timeline-server/internal/apperr"
	"github.com/odin-social/timeline-server/internal/eventplane"
	"github.com/odin-social/timeline-server/internal/metrics"
	"github.com/odin-social/timeline-server/internal/model"
	"github.com/odin-social/timeline-server/internal/streamutil"
)

// RealTime builds u's real-time timeline per spec.md §4.5: a
// never-ending stream of messages whose author is a current friend of u
// at the moment of emission.
//
// Construction: the initial friend set (loaded once) is mapped to
// FriendUpdate.New and concatenated in front of the live
// friendship-update stream (filtered to events touching u, and
// re-expressed as the per-subscriber FriendUpdate projection — carrying
// through whichever side of the directed pair isn't u). That combined
// FriendUpdate stream feeds eventplane.NewMessagesFromUsers, whose
// single-goroutine reducer owns currentFriends and so needs no lock
// (spec.md §5's serialization guarantee).
//
// Race note (spec.md §4.5): a friendship added just before subscription
// may be reported twice — once by the initial snapshot, once by the live
// update. The reducer's set-based state makes the duplicate idempotent.
func RealTime(ctx context.Context, friends FriendLister, b eventplane.Subscriber, u model.UserID, m *metrics.Metrics) <-chan streamutil.Result[model.Message] {
	userStream := make(chan streamutil.Result[model.FriendUpdate])

	go func() {
		defer close(userStream)

		initial, err := friends.GetFriendsOfUser(ctx, u)
		if err != nil {
			select {
			case userStream <- streamutil.Err[model.FriendUpdate](apperr.Wrap(apperr.KindRelational, err)):
			case <-ctx.Done():
				return
			}
			return
		}
		for _, f := range initial {
			select {
			case userStream <- streamutil.Ok(model.FriendUpdate{Kind: model.FriendNew, Friend: f}):
			case <-ctx.Done():
				return
			}
		}

		for upd := range projectFriendshipUpdates(ctx, b, u, m) {
			select {
			case userStream <- upd:
			case <-ctx.Done():
				return
			}
		}
	}()

	return eventplane.NewMessagesFromUsers(ctx, b, userStream, m)
}

// projectFriendshipUpdates filters the bus-wide FriendshipUpdate stream
// to events touching u (u==A or u==B, the bidirectional publish
// semantics of addFriend/removeFriend) and re-expresses each as a
// FriendUpdate naming the other party.
func projectFriendshipUpdates(ctx context.Context, b eventplane.Subscriber, u model.UserID, m *metrics.Metrics) <-chan streamutil.Result[model.FriendUpdate] {
	in := eventplane.FriendshipUpdates(ctx, b, m)
	out := make(chan streamutil.Result[model.FriendUpdate])

	go func() {
		defer close(out)
		for r := range in {
			if r.IsErr() {
				select {
				case out <- streamutil.Err[model.FriendUpdate](r.Err):
				case <-ctx.Done():
					return
				}
				continue
			}

			var friend model.UserID
			switch {
			case r.Value.A == u:
				friend = r.Value.B
			case r.Value.B == u:
				friend = r.Value.A
			default:
				continue
			}

			var kind model.FriendUpdateKind
			switch r.Value.Kind {
			case model.FriendshipNew:
				kind = model.FriendNew
			case model.FriendshipRemoved:
				kind = model.FriendRemoved
			}

			select {
			case out <- streamutil.Ok(model.FriendUpdate{Kind: kind, Friend: friend}):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
