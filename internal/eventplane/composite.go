package eventplane

import (
	"context"

	"github.com/odin-social/timeline-server/internal/metrics"
	"github.com/odin-social/timeline-server/internal/model"
	"github.com/odin-social/timeline-server/internal/streamutil"
)

// NewFriendsOfUser filters friendship.new to events whose first element
// is u, yielding the second element (the new friend). Only the directed
// form (u, f) is reported; addFriend publishes both (u,f) and (f,u) so
// each party observes the other as the new friend on their own stream.
func NewFriendsOfUser(ctx context.Context, b Subscriber, u model.UserID, m *metrics.Metrics) <-chan streamutil.Result[model.UserID] {
	return filterFriendEvents(ctx, SubscribeFriendshipsNew(ctx, b, m), u)
}

// RemovedFriendsOfUser is the symmetric filter over friendship.removed.
func RemovedFriendsOfUser(ctx context.Context, b Subscriber, u model.UserID, m *metrics.Metrics) <-chan streamutil.Result[model.UserID] {
	return filterFriendEvents(ctx, SubscribeFriendshipsRemoved(ctx, b, m), u)
}

func filterFriendEvents(ctx context.Context, in <-chan streamutil.Result[Friendship], u model.UserID) <-chan streamutil.Result[model.UserID] {
	out := make(chan streamutil.Result[model.UserID])
	go func() {
		defer close(out)
		for r := range in {
			if r.IsErr() {
				select {
				case out <- streamutil.Err[model.UserID](r.Err):
				case <-ctx.Done():
					return
				}
				continue
			}
			if r.Value.A != u {
				continue
			}
			select {
			case out <- streamutil.Ok(r.Value.B):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// FriendshipUpdates interleaves friendship.new and friendship.removed
// into a single model.FriendshipUpdate stream, tagging each with its kind.
// Interleaving has no ordering guarantee across the two source subjects;
// each stays internally ordered by bus arrival.
func FriendshipUpdates(ctx context.Context, b Subscriber, m *metrics.Metrics) <-chan streamutil.Result[model.FriendshipUpdate] {
	newCh := SubscribeFriendshipsNew(ctx, b, m)
	removedCh := SubscribeFriendshipsRemoved(ctx, b, m)

	out := make(chan streamutil.Result[model.FriendshipUpdate])
	tag := func(kind model.FriendshipUpdateKind, in <-chan streamutil.Result[Friendship]) {
		for r := range in {
			if r.IsErr() {
				select {
				case out <- streamutil.Err[model.FriendshipUpdate](r.Err):
				case <-ctx.Done():
					return
				}
				continue
			}
			update := model.FriendshipUpdate{Kind: kind, A: r.Value.A, B: r.Value.B}
			select {
			case out <- streamutil.Ok(update):
			case <-ctx.Done():
				return
			}
		}
	}

	done := make(chan struct{}, 2)
	go func() { tag(model.FriendshipNew, newCh); done <- struct{}{} }()
	go func() { tag(model.FriendshipRemoved, removedCh); done <- struct{}{} }()
	go func() {
		<-done
		<-done
		close(out)
	}()

	return out
}

// NewMessagesFromUsers is the dynamic membership filter of spec.md §4.5:
// it reads userStream (a stream of model.FriendUpdate describing the
// evolving membership set) and the live message.new stream, maintaining
// currentFriends as single-goroutine state so the two inputs never race.
// A message is emitted only if, at the moment it is read off the bus, its
// author is in currentFriends. Ordering of emitted messages equals bus
// arrival order (I3): membership updates never reorder messages, they
// only gate whether a given message passes through.
func NewMessagesFromUsers(ctx context.Context, b Subscriber, userStream <-chan streamutil.Result[model.FriendUpdate], metr *metrics.Metrics) <-chan streamutil.Result[model.Message] {
	messages := SubscribeMessages(ctx, b, metr)
	out := make(chan streamutil.Result[model.Message])

	go func() {
		defer close(out)
		currentFriends := make(map[model.UserID]struct{})

		users := userStream
		msgs := messages
		for users != nil || msgs != nil {
			select {
			case u, ok := <-users:
				if !ok {
					users = nil
					continue
				}
				if u.IsErr() {
					select {
					case out <- streamutil.Err[model.Message](u.Err):
					case <-ctx.Done():
						return
					}
					continue
				}
				switch u.Value.Kind {
				case model.FriendNew:
					currentFriends[u.Value.Friend] = struct{}{}
				case model.FriendRemoved:
					delete(currentFriends, u.Value.Friend)
				}

			case m, ok := <-msgs:
				if !ok {
					msgs = nil
					continue
				}
				if m.IsErr() {
					select {
					case out <- streamutil.Err[model.Message](m.Err):
					case <-ctx.Done():
						return
					}
					continue
				}
				if _, isFriend := currentFriends[m.Value.AuthorID]; !isFriend {
					continue
				}
				select {
				case out <- streamutil.Ok(m.Value):
				case <-ctx.Done():
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
