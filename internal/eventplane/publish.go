package eventplane

import (
	"github.com/odin-social/timeline-server/internal/apperr"
	"github.com/odin-social/timeline-server/internal/codec"
	"github.com/odin-social/timeline-server/internal/model"
	"github.com/odin-social/timeline-server/pkg/bus"
)

// Publisher is satisfied by *bus.Client; tests substitute a fake.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// PublishMessage encodes m and publishes it on message.new.
func PublishMessage(b Publisher, m model.Message) error {
	wire, err := codec.EncodeMessage(m)
	if err != nil {
		return apperr.Wrap(apperr.KindDecoding, err)
	}
	if err := b.Publish(SubjectMessageNew, wire); err != nil {
		return apperr.Wrap(apperr.KindBus, err)
	}
	return nil
}

// PublishFriendshipNew publishes the directed pair (a,b) on
// friendship.new. addFriend publishes both (a,b) and (b,a) so each party
// sees the other reported as their new friend.
func PublishFriendshipNew(b Publisher, a, friend model.UserID) error {
	return publishFriendship(b, SubjectFriendshipNew, a, friend)
}

// PublishFriendshipRemoved is the symmetric removal publish.
func PublishFriendshipRemoved(b Publisher, a, friend model.UserID) error {
	return publishFriendship(b, SubjectFriendshipRemoved, a, friend)
}

func publishFriendship(b Publisher, subject string, a, friend model.UserID) error {
	wire, err := codec.EncodeFriendship(a, friend)
	if err != nil {
		return apperr.Wrap(apperr.KindDecoding, err)
	}
	if err := b.Publish(subject, wire); err != nil {
		return apperr.Wrap(apperr.KindBus, err)
	}
	return nil
}

// PublishMessageSeen publishes a tag-read event on message.seen.
func PublishMessageSeen(b Publisher, user model.UserID, msgID model.MessageID) error {
	return publishTag(b, SubjectMessageSeen, user, msgID)
}

// PublishMessageUnseen publishes a tag-unread event on message.unseen.
func PublishMessageUnseen(b Publisher, user model.UserID, msgID model.MessageID) error {
	return publishTag(b, SubjectMessageUnseen, user, msgID)
}

func publishTag(b Publisher, subject string, user model.UserID, msgID model.MessageID) error {
	wire, err := codec.EncodeMessageTag(user, msgID)
	if err != nil {
		return apperr.Wrap(apperr.KindDecoding, err)
	}
	if err := b.Publish(subject, wire); err != nil {
		return apperr.Wrap(apperr.KindBus, err)
	}
	return nil
}
