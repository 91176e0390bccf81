package streamutil

import (
	"context"
	"sync"
)

// FanIn multiplexes n sources into one channel with no ordering
// guarantee across sources — spec.md §4.5 calls this the "simple,
// non-sorted select" the historical timeline uses instead of
// MergeSorted, since each per-friend source is already internally
// ordered and the historical read makes no cross-friend ordering
// promise. The output closes once every source is drained or ctx ends.
func FanIn[T any](ctx context.Context, sources ...<-chan T) <-chan T {
	out := make(chan T)
	var wg sync.WaitGroup
	wg.Add(len(sources))
	for _, s := range sources {
		go func(s <-chan T) {
			defer wg.Done()
			for {
				select {
				case v, ok := <-s:
					if !ok {
						return
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
		}(s)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
