package timeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odin-social/timeline-server/internal/eventplane"
	"github.com/odin-social/timeline-server/internal/metrics"
	"github.com/odin-social/timeline-server/internal/model"
	"github.com/odin-social/timeline-server/pkg/bus"
)

// testMetrics is constructed once for the whole test binary: promauto
// registers against the default Prometheus registry at construction
// time, so a second metrics.New() call in the same process panics with
// a duplicate-registration error.
var testMetrics = metrics.New()

// fakeBus mirrors internal/eventplane's own test fake: an in-process
// synchronous pub/sub standing in for *bus.Client.
type fakeBus struct {
	mu       sync.Mutex
	handlers map[string][]bus.Handler
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string][]bus.Handler)}
}

func (f *fakeBus) Publish(subject string, data []byte) error {
	f.mu.Lock()
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

// TestRealTimeFilteringScenario reproduces spec.md's concrete scenario 4
// end to end through timeline.RealTime, rather than through the raw
// eventplane combinator directly: subscriber u with initial friends {a};
// bus sequence msg(a,"hi"), friendship.new(u,b), msg(b,"yo"),
// friendship.removed(u,a), msg(a,"bye"). Emitted: msg(a,"hi"), msg(b,"yo").
func TestRealTimeFilteringScenario(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	b := newFakeBus()
	u, a, fB := model.NewUserID(), model.NewUserID(), model.NewUserID()
	lister := fakeFriendLister{friends: []model.UserID{a}}

	out := RealTime(ctx, lister, b, u, testMetrics)

	msgHi := model.NewMessage(a, time.Now(), "hi")
	msgYo := model.NewMessage(fB, time.Now().Add(time.Millisecond), "yo")
	msgBye := model.NewMessage(a, time.Now().Add(2*time.Millisecond), "bye")

	require.NoError(t, eventplane.PublishMessage(b, msgHi))
	first := <-out
	require.False(t, first.IsErr())
	require.Equal(t, "hi", first.Value.Content)

	require.NoError(t, eventplane.PublishFriendshipNew(b, u, fB))
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, eventplane.PublishMessage(b, msgYo))
	second := <-out
	require.False(t, second.IsErr())
	require.Equal(t, "yo", second.Value.Content)

	require.NoError(t, eventplane.PublishFriendshipRemoved(b, u, a))
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, eventplane.PublishMessage(b, msgBye))

	select {
	case v := <-out:
		t.Fatalf("expected msg(a,\"bye\") to be dropped, got %+v", v)
	case <-time.After(50 * time.Millisecond):
	}
}
