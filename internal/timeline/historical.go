// Package timeline implements the timeline engine (C5), the spec's
// centerpiece: the historical-timeline builder (friends -> per-friend
// bucketed message streams -> fan-in) and the real-time-timeline builder
// (initial friends ∪ live friend updates -> dynamic membership set ->
// filtered live-message stream).
package timeline

import (
	"context"

	"github.com/odin-social/timeline-server/internal/apperr"
	"github.com/odin-social/timeline-server/internal/bucket"
	"github.com/odin-social/timeline-server/internal/model"
	"github.com/odin-social/timeline-server/internal/streamutil"
)

// FriendLister loads a user's current friend set. Satisfied by
// *storage.RelationalStore.
type FriendLister interface {
	GetFriendsOfUser(ctx context.Context, u model.UserID) ([]model.UserID, error)
}

// BucketReader loads one user's messages in one week bucket, already in
// clustering (date descending) order. Satisfied by *storage.ColumnStore.
type BucketReader interface {
	MessagesInBucket(ctx context.Context, user model.UserID, b bucket.TimeBucket) ([]model.Message, error)
}

// Historical builds u's historical timeline: the lazy, descending-date
// stream of u's friends' messages described in spec.md §4.5. It loads
// u's friend set once, then spawns one bucket-walking goroutine per
// friend and fans them into a single unordered output stream — "simple,
// non-sorted select", per the spec's explicit rationale that cross-friend
// ordering is not guaranteed for historical reads.
//
// A column-store error terminates only the offending friend's
// sub-stream; the other friends' streams and the merged output continue.
func Historical(ctx context.Context, friends FriendLister, bucketReader BucketReader, u model.UserID) <-chan streamutil.Result[model.Message] {
	out := make(chan streamutil.Result[model.Message])

	go func() {
		defer close(out)

		friendIDs, err := friends.GetFriendsOfUser(ctx, u)
		if err != nil {
			select {
			case out <- streamutil.Err[model.Message](apperr.Wrap(apperr.KindRelational, err)):
			case <-ctx.Done():
			}
			return
		}

		perFriend := make([]<-chan streamutil.Result[model.Message], len(friendIDs))
		for i, f := range friendIDs {
			perFriend[i] = friendMessageStream(ctx, bucketReader, f)
		}

		fanned := streamutil.FanIn(ctx, perFriend...)
		for v := range fanned {
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// friendMessageStream implements GetLastMessagesOfUser(f, startingFrom =
// current bucket, endsAt = epoch): it walks startingFrom.IterPastTo(epoch)
// and issues one column-store point query per bucket, flattening the
// rows into Message values. Each point query is only issued once the
// previous bucket's rows have been drained, so the stream naturally
// rate-limits to consumer speed (spec.md §4.5 backpressure note).
func friendMessageStream(ctx context.Context, bucketReader BucketReader, friend model.UserID) <-chan streamutil.Result[model.Message] {
	out := make(chan streamutil.Result[model.Message])

	go func() {
		defer close(out)
		for b := range bucket.Current().IterPastTo(bucket.Epoch) {
			messages, err := bucketReader.MessagesInBucket(ctx, friend, b)
			if err != nil {
				select {
				case out <- streamutil.Err[model.Message](err):
				case <-ctx.Done():
				}
				return // a column-store error terminates only this friend's sub-stream
			}
			for _, m := range messages {
				select {
				case out <- streamutil.Ok(m):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
