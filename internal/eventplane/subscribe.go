package eventplane

import (
	"context"

	"github.com/odin-social/timeline-server/internal/apperr"
	"github.com/odin-social/timeline-server/internal/codec"
	"github.com/odin-social/timeline-server/internal/metrics"
	"github.com/odin-social/timeline-server/internal/model"
	"github.com/odin-social/timeline-server/internal/streamutil"
	"github.com/odin-social/timeline-server/pkg/bus"
)

// Subscriber is satisfied by *bus.Client; tests substitute a fake.
type Subscriber interface {
	Subscribe(ctx context.Context, subject string, handler bus.Handler) (unsubscribe func(), err error)
}

// subscribeDecoded wires subject's raw bus payloads through codec.DecodeOne
// and decode into a typed streamutil.Result channel via extract. A decode
// failure (apperr.KindDecoding) or a type mismatch against the expected
// wire kind surfaces as one Result item; the stream continues per
// spec.md §4.4. A subscription failure is reported as a single terminal
// KindBus error and the channel is closed. Every inbound payload is
// counted as received, and every decode/kind-mismatch failure as a
// decode error, both labeled by subject.
func subscribeDecoded[T any](ctx context.Context, b Subscriber, subject string, extract func(any) (T, bool), m *metrics.Metrics) <-chan streamutil.Result[T] {
	out := make(chan streamutil.Result[T])

	unsubscribe, err := b.Subscribe(ctx, subject, func(data []byte) {
		m.RecordBusReceive(subject)
		decoded, decErr := codec.DecodeOne(data)
		if decErr != nil {
			m.RecordBusDecodeError(subject)
			select {
			case out <- streamutil.Err[T](apperr.Wrap(apperr.KindDecoding, decErr)):
			case <-ctx.Done():
			}
			return
		}
		value, ok := extract(decoded)
		if !ok {
			m.RecordBusDecodeError(subject)
			select {
			case out <- streamutil.Err[T](apperr.Wrap(apperr.KindDecoding, codec.ErrUnexpectedKind)):
			case <-ctx.Done():
			}
			return
		}
		select {
		case out <- streamutil.Ok(value):
		case <-ctx.Done():
		}
	})

	if err != nil {
		go func() {
			defer close(out)
			select {
			case out <- streamutil.Err[T](apperr.Wrap(apperr.KindBus, err)):
			case <-ctx.Done():
			}
		}()
		return out
	}

	go func() {
		<-ctx.Done()
		unsubscribe()
		close(out)
	}()

	return out
}

// SubscribeMessages returns the decoded stream of message.new.
func SubscribeMessages(ctx context.Context, b Subscriber, m *metrics.Metrics) <-chan streamutil.Result[model.Message] {
	return subscribeDecoded(ctx, b, SubjectMessageNew, func(v any) (model.Message, bool) {
		msg, ok := v.(model.Message)
		return msg, ok
	}, m)
}

// SubscribeFriendshipsNew returns the decoded stream of friendship.new.
func SubscribeFriendshipsNew(ctx context.Context, b Subscriber, m *metrics.Metrics) <-chan streamutil.Result[codec.Friendship] {
	return subscribeFriendship(ctx, b, SubjectFriendshipNew, m)
}

// SubscribeFriendshipsRemoved returns the decoded stream of friendship.removed.
func SubscribeFriendshipsRemoved(ctx context.Context, b Subscriber, m *metrics.Metrics) <-chan streamutil.Result[codec.Friendship] {
	return subscribeFriendship(ctx, b, SubjectFriendshipRemoved, m)
}

func subscribeFriendship(ctx context.Context, b Subscriber, subject string, m *metrics.Metrics) <-chan streamutil.Result[codec.Friendship] {
	return subscribeDecoded(ctx, b, subject, func(v any) (codec.Friendship, bool) {
		f, ok := v.(codec.Friendship)
		return f, ok
	}, m)
}

// SubscribeMessageSeen returns the decoded stream of message.seen.
func SubscribeMessageSeen(ctx context.Context, b Subscriber, m *metrics.Metrics) <-chan streamutil.Result[codec.MessageTag] {
	return subscribeTag(ctx, b, SubjectMessageSeen, m)
}

// SubscribeMessageUnseen returns the decoded stream of message.unseen.
func SubscribeMessageUnseen(ctx context.Context, b Subscriber, m *metrics.Metrics) <-chan streamutil.Result[codec.MessageTag] {
	return subscribeTag(ctx, b, SubjectMessageUnseen, m)
}

func subscribeTag(ctx context.Context, b Subscriber, subject string, m *metrics.Metrics) <-chan streamutil.Result[codec.MessageTag] {
	return subscribeDecoded(ctx, b, subject, func(v any) (codec.MessageTag, bool) {
		tag, ok := v.(codec.MessageTag)
		return tag, ok
	}, m)
}
