package session

import (
	"context"
	"sync"
	"time"
)

// debouncer runs the last function scheduled within a delay window. Each
// schedule call re-arms the timer and supersedes the previous one.
type debouncer struct {
	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newDebouncer() *debouncer {
	ctx, cancel := context.WithCancel(context.Background())
	return &debouncer{ctx: ctx, cancel: cancel}
}

// schedule arms fn to run after delay. fn receives a context cancelled by
// close.
func (d *debouncer) schedule(delay time.Duration, fn func(ctx context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if delay < 0 {
		delay = 0
	}

	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		if d.closed || gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.wg.Add(1)
		d.mu.Unlock()

		defer d.wg.Done()
		fn(d.ctx)
	})
}

// close stops the pending timer, cancels running functions and waits for
// them to return. Nothing scheduled runs after close returns.
func (d *debouncer) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}
