// Package eventplane builds the five typed pub/sub channels on top of
// pkg/bus and internal/codec: message.new, friendship.new,
// friendship.removed, message.seen, message.unseen. Each primitive
// channel has a Publish function and a Subscribe function returning a
// stream of streamutil.Result so a per-item decode failure never kills
// the subscription (spec.md §4.4). The composite streams
// (NewFriendsOfUser, RemovedFriendsOfUser, FriendshipUpdates,
// NewMessagesFromUsers) are built on those primitives in composite.go.
package eventplane

// Subjects used on the bus. Kept as exported constants so the service
// layer and tests can assert against them without string literals.
const (
	SubjectMessageNew        = "message.new"
	SubjectFriendshipNew     = "friendship.new"
	SubjectFriendshipRemoved = "friendship.removed"
	SubjectMessageSeen       = "message.seen"
	SubjectMessageUnseen     = "message.unseen"
)
