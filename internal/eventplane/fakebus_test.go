package eventplane

import (
	"context"
	"sync"

	"github.com/odin-social/timeline-server/internal/metrics"
	"github.com/odin-social/timeline-server/pkg/bus"
)

// testMetrics is constructed once for the whole test binary: promauto
// registers against the default Prometheus registry at construction
// time, so a second metrics.New() call in the same process panics with
// a duplicate-registration error.
var testMetrics = metrics.New()

// fakeBus is a minimal in-process pub/sub standing in for *bus.Client in
// tests: Publish fans out synchronously to every handler currently
// registered on the subject.
type fakeBus struct {
	mu       sync.Mutex
	handlers map[string][]*bus.Handler
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string][]*bus.Handler)}
}

func (f *fakeBus) Publish(subject string, data []byte) error {
	f.mu.Lock()
	handlers := append([]*bus.Handler(nil), f.handlers[subject]...)
	f.mu.Unlock()
	for _, h := range handlers {
		(*h)(data)
	}
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, subject string, handler bus.Handler) (func(), error) {
	entry := &handler
	f.mu.Lock()
	f.handlers[subject] = append(f.handlers[subject], entry)
	f.mu.Unlock()

	unsubscribe := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		hs := f.handlers[subject]
		for i, h := range hs {
			if h == entry { // identity of this subscription's own entry
				f.handlers[subject] = append(hs[:i], hs[i+1:]...)
				break
			}
		}
	}

	go func() {
		<-ctx.Done()
	}()

	return unsubscribe, nil
}
