// Package service implements the RPC-facing operations of spec.md §6,
// the seam between whatever transport exposes the RPC surface and the
// core (storage, event plane, timeline engine, task manager). It holds
// no transport-specific code — grounded on go-server/internal/server's
// constructor-injected Server struct, generalized from "one struct per
// process holding every dependency" to "one struct holding exactly the
// interfaces an operation needs", consistent with spec.md §9's interface
// guidance.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/odin-social/timeline-server/internal/apperr"
	"github.com/odin-social/timeline-server/internal/eventplane"
	"github.com/odin-social/timeline-server/internal/metrics"
	"github.com/odin-social/timeline-server/internal/model"
	"github.com/odin-social/timeline-server/internal/storage"
	"github.com/odin-social/timeline-server/internal/streamutil"
	"github.com/odin-social/timeline-server/internal/taskmanager"
	"github.com/odin-social/timeline-server/internal/timeline"
)

// RelationalStore is the subset of *storage.RelationalStore the service
// layer needs.
type RelationalStore interface {
	GetUserByName(ctx context.Context, name string) (model.UserID, error)
	GetFriendsOfUser(ctx context.Context, u model.UserID) ([]model.UserID, error)
	AddFriendship(ctx context.Context, a, b model.UserID) error
	RemoveFriendship(ctx context.Context, a, b model.UserID) error
}

// ColumnStore is the subset of *storage.ColumnStore the service layer
// needs. It embeds timeline.BucketReader so a Service can hand its store
// straight to timeline.Historical.
type ColumnStore interface {
	timeline.BucketReader
	InsertMessage(ctx context.Context, m model.Message) error
	TagRead(ctx context.Context, user model.UserID, msgID model.MessageID) error
	TagUnread(ctx context.Context, user model.UserID, msgID model.MessageID) error
	IsRead(ctx context.Context, user model.UserID, msgID model.MessageID) (bool, error)
}

// Bus is satisfied by *bus.Client; it is both an eventplane.Publisher
// and an eventplane.Subscriber.
type Bus interface {
	eventplane.Publisher
	eventplane.Subscriber
}

// Service implements every operation of spec.md §6's RPC surface.
type Service struct {
	relational RelationalStore
	column     ColumnStore
	bus        Bus
	tasks      *taskmanager.Manager
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// New constructs a Service from its dependencies.
func New(relational RelationalStore, column ColumnStore, b Bus, tasks *taskmanager.Manager, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{relational: relational, column: column, bus: b, tasks: tasks, metrics: m, logger: logger}
}

// GetUserByNameResult is the getUserByName RPC response.
type GetUserByNameResult struct {
	UserID model.UserID
	Name   string
}

// GetUserByName resolves a display name to a UserID, per spec.md §6.
func (s *Service) GetUserByName(ctx context.Context, name string) (GetUserByNameResult, error) {
	id, err := s.relational.GetUserByName(ctx, name)
	if errors.Is(err, storage.ErrUserNotFound) {
		return GetUserByNameResult{}, apperr.NotFound(fmt.Errorf("no such user %q", name))
	}
	if err != nil {
		s.metrics.RecordRelationalError()
		return GetUserByNameResult{}, err
	}
	return GetUserByNameResult{UserID: id, Name: name}, nil
}

// AddFriend creates the friendship and publishes both directed
// new-friendship events, per spec.md §6 and the self-friendship design
// note in §9: addFriend(u, u) is rejected as InvalidArgument before
// reaching storage.
func (s *Service) AddFriend(ctx context.Context, user, friend model.UserID) error {
	if user == friend {
		return apperr.InvalidArgument(errors.New("cannot friend yourself"))
	}

	if err := s.relational.AddFriendship(ctx, user, friend); err != nil {
		s.metrics.RecordRelationalError()
		return err
	}

	// Publish failures are logged and swallowed: persistence already
	// succeeded, per spec.md §7's write-path policy.
	if err := eventplane.PublishFriendshipNew(s.bus, user, friend); err != nil {
		s.logger.Error().Err(err).Str("user", user.String()).Str("friend", friend.String()).Msg("addFriend: publish failed after successful persist")
	} else {
		s.metrics.RecordBusPublish(eventplane.SubjectFriendshipNew)
	}
	if err := eventplane.PublishFriendshipNew(s.bus, friend, user); err != nil {
		s.logger.Error().Err(err).Str("user", friend.String()).Str("friend", user.String()).Msg("addFriend: reverse publish failed after successful persist")
	} else {
		s.metrics.RecordBusPublish(eventplane.SubjectFriendshipNew)
	}
	return nil
}

// RemoveFriend deletes the friendship and publishes both directed
// removed-friendship events.
func (s *Service) RemoveFriend(ctx context.Context, user, friend model.UserID) error {
	if err := s.relational.RemoveFriendship(ctx, user, friend); err != nil {
		s.metrics.RecordRelationalError()
		return err
	}

	if err := eventplane.PublishFriendshipRemoved(s.bus, user, friend); err != nil {
		s.logger.Error().Err(err).Str("user", user.String()).Str("friend", friend.String()).Msg("removeFriend: publish failed after successful persist")
	} else {
		s.metrics.RecordBusPublish(eventplane.SubjectFriendshipRemoved)
	}
	if err := eventplane.PublishFriendshipRemoved(s.bus, friend, user); err != nil {
		s.logger.Error().Err(err).Str("user", friend.String()).Str("friend", user.String()).Msg("removeFriend: reverse publish failed after successful persist")
	} else {
		s.metrics.RecordBusPublish(eventplane.SubjectFriendshipRemoved)
	}
	return nil
}

// PostMessage assigns the message its ID from author and at, then
// detaches the persist + publish onto the task manager so that
// cancelling the calling RPC cannot cancel the write, per spec.md §4.6
// and its concrete scenario 5 (durable write). The write itself runs
// against context.Background rather than ctx, since ctx may already be
// cancelled by the time the worker picks up the task. When the task
// finishes before ctx ends, the returned error reflects only whether the
// persist half succeeded; a publish failure after a successful persist
// is logged and swallowed, per spec.md §7. If ctx ends first, ctx's
// error is returned while the write continues in the background.
func (s *Service) PostMessage(ctx context.Context, author model.UserID, at time.Time, content string) error {
	m := model.NewMessage(author, at, content)

	err, waitErr := taskmanager.SpawnAwaitResult(ctx, s.tasks, func() error {
		if err := s.column.InsertMessage(context.Background(), m); err != nil {
			s.metrics.RecordColumnError()
			return err
		}
		if err := eventplane.PublishMessage(s.bus, m); err != nil {
			s.logger.Error().Err(err).Str("message_id", m.ID.String()).Msg("postMessage: publish failed after successful persist")
		} else {
			s.metrics.RecordBusPublish(eventplane.SubjectMessageNew)
		}
		return nil
	})
	if waitErr != nil {
		// The caller's own context was cancelled before the task
		// finished; the write still runs to completion in the
		// background, per the durable-intent guarantee.
		return waitErr
	}
	s.metrics.RecordTaskCompleted()
	return err
}

// Timeline returns u's historical timeline, per spec.md §4.5 and §6.
// The caller is expected to range over the returned channel until it
// closes or their context is cancelled.
func (s *Service) Timeline(ctx context.Context, u model.UserID) <-chan streamutil.Result[model.Message] {
	s.metrics.HistoricalStreamOpened()
	out := timeline.Historical(ctx, s.relational, s.column, u)
	return instrumentStream(ctx, out, "historical", s.metrics, s.HistoricalStreamClosed)
}

// RealTimeNotifications returns u's live timeline, per spec.md §4.5 and §6.
func (s *Service) RealTimeNotifications(ctx context.Context, u model.UserID) <-chan streamutil.Result[model.Message] {
	s.metrics.RealTimeStreamOpened()
	out := timeline.RealTime(ctx, s.relational, s.bus, u, s.metrics)
	return instrumentStream(ctx, out, "realtime", s.metrics, s.RealTimeStreamClosed)
}

// HistoricalStreamClosed and RealTimeStreamClosed let instrumentStream
// decrement the right active-stream gauge without it needing to know
// which kind of stream it is wrapping.
func (s *Service) HistoricalStreamClosed() { s.metrics.HistoricalStreamClosed() }
func (s *Service) RealTimeStreamClosed()   { s.metrics.RealTimeStreamClosed() }

// instrumentStream counts each emitted message under kind and calls
// onClose once the source stream closes or ctx is cancelled, so stream
// lifecycle metrics stay accurate regardless of which side ends it
// first.
func instrumentStream(ctx context.Context, in <-chan streamutil.Result[model.Message], kind string, m *metrics.Metrics, onClose func()) <-chan streamutil.Result[model.Message] {
	out := make(chan streamutil.Result[model.Message])
	go func() {
		defer close(out)
		defer onClose()
		for {
			select {
			case v, ok := <-in:
				if !ok {
					return
				}
				if !v.IsErr() {
					m.RecordMessageEmitted(kind)
				}
				select {
				case out <- v:
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

// TagReadMessage marks (user, msgID) as seen and publishes message.seen.
// Already-seen is a no-op: it neither rewrites the tag nor republishes.
func (s *Service) TagReadMessage(ctx context.Context, user model.UserID, msgID model.MessageID) error {
	if read, err := s.column.IsRead(ctx, user, msgID); err != nil {
		s.metrics.RecordColumnError()
		return err
	} else if read {
		return nil
	}
	if err := s.column.TagRead(ctx, user, msgID); err != nil {
		s.metrics.RecordColumnError()
		return err
	}
	if err := eventplane.PublishMessageSeen(s.bus, user, msgID); err != nil {
		s.logger.Error().Err(err).Str("user", user.String()).Str("message_id", msgID.String()).Msg("tagReadMessage: publish failed after successful persist")
	} else {
		s.metrics.RecordBusPublish(eventplane.SubjectMessageSeen)
	}
	return nil
}

// TagUnreadMessage clears the seen tag and publishes message.unseen.
// Already-unseen is a no-op: it neither issues the delete nor republishes.
func (s *Service) TagUnreadMessage(ctx context.Context, user model.UserID, msgID model.MessageID) error {
	if read, err := s.column.IsRead(ctx, user, msgID); err != nil {
		s.metrics.RecordColumnError()
		return err
	} else if !read {
		return nil
	}
	if err := s.column.TagUnread(ctx, user, msgID); err != nil {
		s.metrics.RecordColumnError()
		return err
	}
	if err := eventplane.PublishMessageUnseen(s.bus, user, msgID); err != nil {
		s.logger.Error().Err(err).Str("user", user.String()).Str("message_id", msgID.String()).Msg("tagUnreadMessage: publish failed after successful persist")
	} else {
		s.metrics.RecordBusPublish(eventplane.SubjectMessageUnseen)
	}
	return nil
}
