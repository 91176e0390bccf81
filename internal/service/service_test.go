package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/odin-social/timeline-server/internal/apperr"
	"github.com/odin-social/timeline-server/internal/bucket"
	"github.com/odin-social/timeline-server/internal/metrics"
	"github.com/odin-social/timeline-server/internal/model"
	"github.com/odin-social/timeline-server/internal/storage"
	"github.com/odin-social/timeline-server/internal/taskmanager"
	"github.com/odin-social/timeline-server/pkg/bus"
)

// testMetrics is constructed once for the whole test binary: promauto
// registers against the default Prometheus registry at construction
// time, so a second metrics.New() call in the same process panics with
// a duplicate-registration error.
var testMetrics = metrics.New()

type fakeRelational struct {
	mu        sync.Mutex
	names     map[string]model.UserID
	friends   map[model.UserID][]model.UserID
	addCalls  []model.Friendship
	removeErr error
}

func newFakeRelational() *fakeRelational {
	return &fakeRelational{names: make(map[string]model.UserID), friends: make(map[model.UserID][]model.UserID)}
}

func (f *fakeRelational) GetUserByName(_ context.Context, name string) (model.UserID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.names[name]
	if !ok {
		return model.UserID{}, storage.ErrUserNotFound
	}
	return id, nil
}

func (f *fakeRelational) GetFriendsOfUser(_ context.Context, u model.UserID) ([]model.UserID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.friends[u], nil
}

func (f *fakeRelational) AddFriendship(_ context.Context, a, b model.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls = append(f.addCalls, model.Friendship{A: a, B: b})
	f.friends[a] = append(f.friends[a], b)
	f.friends[b] = append(f.friends[b], a)
	return nil
}

func (f *fakeRelational) RemoveFriendship(_ context.Context, a, b model.UserID) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	return nil
}

type fakeColumn struct {
	mu         sync.Mutex
	inserted   []model.Message
	tagged     map[model.MessageID]bool
	tagCalls   int
	untagCalls int
}

func newFakeColumn() *fakeColumn {
	return &fakeColumn{tagged: make(map[model.MessageID]bool)}
}

func (f *fakeColumn) MessagesInBucket(_ context.Context, _ model.UserID, _ bucket.TimeBucket) ([]model.Message, error) {
	return nil, nil
}

func (f *fakeColumn) InsertMessage(_ context.Context, m model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, m)
	return nil
}

func (f *fakeColumn) TagRead(_ context.Context, _ model.UserID, msgID model.MessageID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tagCalls++
	f.tagged[msgID] = true
	return nil
}

func (f *fakeColumn) TagUnread(_ context.Context, _ model.UserID, msgID model.MessageID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.untagCalls++
	f.tagged[msgID] = false
	return nil
}

func (f *fakeColumn) IsRead(_ context.Context, _ model.UserID, msgID model.MessageID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tagged[msgID], nil
}

type fakeBus struct {
	mu        sync.Mutex
	published []string
	handlers  map[string][]bus.Handler
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string][]bus.Handler)}
}

func (f *fakeBus) Publish(subject string, data []byte) error {
	f.mu.Lock()
	f.published = append(f.published, subject)
	handlers := append([]bus.Handler(nil), f.handlers[subject]...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(data)
	}
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, subject string, handler bus.Handler) (func(), error) {
	f.mu.Lock()
	f.handlers[subject] = append(f.handlers[subject], handler)
	f.mu.Unlock()
	go func() { <-ctx.Done() }()
	return func() {}, nil
}

func newTestService(t *testing.T, relational *fakeRelational, column *fakeColumn, b *fakeBus) *Service {
	t.Helper()
	tasks := taskmanager.New(2, zerolog.Nop(), testMetrics)
	ctx, cancel := context.WithCancel(context.Background())
	tasks.Start(ctx)
	t.Cleanup(cancel)
	return New(relational, column, b, tasks, testMetrics, zerolog.Nop())
}

// TestGetUserByNameNotFoundMapsToCodeNotFound checks the getUserByName
// error-mapping contract of spec.md §6/§7.
func TestGetUserByNameNotFoundMapsToCodeNotFound(t *testing.T) {
	svc := newTestService(t, newFakeRelational(), newFakeColumn(), newFakeBus())

	_, err := svc.GetUserByName(context.Background(), "nobody")
	require.Error(t, err)
	require.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestGetUserByNameFound(t *testing.T) {
	relational := newFakeRelational()
	u := model.NewUserID()
	relational.names["alice"] = u

	svc := newTestService(t, relational, newFakeColumn(), newFakeBus())
	result, err := svc.GetUserByName(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, u, result.UserID)
}

// TestAddFriendRejectsSelfFriendship is spec.md §9's explicit design
// note: addFriend(u, u) must be rejected as InvalidArgument.
func TestAddFriendRejectsSelfFriendship(t *testing.T) {
	svc := newTestService(t, newFakeRelational(), newFakeColumn(), newFakeBus())
	u := model.NewUserID()

	err := svc.AddFriend(context.Background(), u, u)
	require.Error(t, err)
	require.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
}

// TestAddFriendPersistsAndPublishesBothDirections verifies both the
// persist and the bidirectional publish (§6: "publishes on new-friendship").
func TestAddFriendPersistsAndPublishesBothDirections(t *testing.T) {
	relational := newFakeRelational()
	b := newFakeBus()
	svc := newTestService(t, relational, newFakeColumn(), b)

	u, f := model.NewUserID(), model.NewUserID()
	require.NoError(t, svc.AddFriend(context.Background(), u, f))

	require.Len(t, relational.addCalls, 1)
	require.Equal(t, model.Friendship{A: u, B: f}, relational.addCalls[0])

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Len(t, b.published, 2)
}

// TestPostMessageSurvivesCallerContextCancellation is spec.md §8's
// concrete scenario 5 (durable write): the caller cancels immediately,
// but the persist still completes in the background and a subscriber
// still observes the publish.
func TestPostMessageSurvivesCallerContextCancellation(t *testing.T) {
	column := newFakeColumn()
	b := newFakeBus()
	svc := newTestService(t, newFakeRelational(), column, b)

	var received []byte
	var wg sync.WaitGroup
	wg.Add(1)
	_, err := b.Subscribe(context.Background(), "message.new", func(data []byte) {
		received = data
		wg.Done()
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancelled before PostMessage is even called

	author := model.NewUserID()
	err = svc.PostMessage(ctx, author, time.Now(), "hello")
	// The caller's own cancelled context surfaces as an error from Wait,
	// but the underlying task is not aborted.
	_ = err

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for durable write to complete")
	}

	require.Len(t, column.inserted, 1)
	require.Equal(t, author, column.inserted[0].AuthorID)
	require.NotEmpty(t, received)
}

// TestPostMessageSucceedsWithLiveContext is the non-cancelled happy path.
func TestPostMessageSucceedsWithLiveContext(t *testing.T) {
	column := newFakeColumn()
	svc := newTestService(t, newFakeRelational(), column, newFakeBus())

	author := model.NewUserID()
	err := svc.PostMessage(context.Background(), author, time.Now(), "hi")
	require.NoError(t, err)
	require.Len(t, column.inserted, 1)
}

func TestTagReadAndUnreadPublish(t *testing.T) {
	column := newFakeColumn()
	b := newFakeBus()
	svc := newTestService(t, newFakeRelational(), column, b)

	u := model.NewUserID()
	msgID := model.NewMessageID(u, time.Now())

	require.NoError(t, svc.TagReadMessage(context.Background(), u, msgID))
	require.True(t, column.tagged[msgID])

	require.NoError(t, svc.TagUnreadMessage(context.Background(), u, msgID))
	require.False(t, column.tagged[msgID])

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Equal(t, []string{"message.seen", "message.unseen"}, b.published)
}

// TestTagReadAndUnreadAreIdempotent exercises the IsRead short-circuit:
// tagging an already-seen message doesn't rewrite the tag or republish,
// and clearing an already-unseen message doesn't issue the delete or
// republish either.
func TestTagReadAndUnreadAreIdempotent(t *testing.T) {
	column := newFakeColumn()
	b := newFakeBus()
	svc := newTestService(t, newFakeRelational(), column, b)

	u := model.NewUserID()
	msgID := model.NewMessageID(u, time.Now())

	require.NoError(t, svc.TagReadMessage(context.Background(), u, msgID))
	require.NoError(t, svc.TagReadMessage(context.Background(), u, msgID))
	require.Equal(t, 1, column.tagCalls)

	require.NoError(t, svc.TagUnreadMessage(context.Background(), u, msgID))
	require.NoError(t, svc.TagUnreadMessage(context.Background(), u, msgID))
	require.Equal(t, 1, column.untagCalls)

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Equal(t, []string{"message.seen", "message.unseen"}, b.published)
}

func TestRemoveFriendPropagatesRelationalError(t *testing.T) {
	relational := newFakeRelational()
	relational.removeErr = errors.New("db down")
	svc := newTestService(t, relational, newFakeColumn(), newFakeBus())

	err := svc.RemoveFriend(context.Background(), model.NewUserID(), model.NewUserID())
	require.Error(t, err)
}
