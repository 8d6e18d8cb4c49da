package reader

import (
	"context"
	"time"
)

// Start polls the feed every Interval until Stop is called. With
// readOnStart the first cycle runs immediately. Starting a running reader
// does nothing.
func (r *Reader) Start(readOnStart bool) {
	r.pollMu.Lock()
	defer r.pollMu.Unlock()

	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	go r.loop(ctx, readOnStart)
}

// Stop ends polling and waits for an in-flight fetch to return. Handlers
// being notified of a finished cycle are not waited for, so a handler may
// call Stop itself.
func (r *Reader) Stop() {
	r.pollMu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.pollMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	r.cycleMu.Lock()
	r.cycleMu.Unlock()
}

func (r *Reader) Running() bool {
	r.pollMu.Lock()
	defer r.pollMu.Unlock()
	return r.cancel != nil
}

func (r *Reader) loop(ctx context.Context, readOnStart bool) {
	if readOnStart {
		r.poll(ctx)
	}

	ticker := time.NewTicker(r.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case interval := <-r.reset:
			r.logger.Debug("Poll timer restarted", "interval", interval)
			ticker.Reset(interval)
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			r.poll(ctx)
		}
	}
}

// poll runs the handlers after releasing cycleMu so that Stop called from
// a handler does not wait on its own goroutine.
func (r *Reader) poll(ctx context.Context) {
	r.cycleMu.Lock()
	result, err := r.execute(ctx)
	r.cycleMu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.emitError(err)
		return
	}
	r.notify(result.Items)
}

// rearm hands a new period to the poll loop, replacing one not yet picked up.
func (r *Reader) rearm(interval time.Duration) {
	select {
	case <-r.reset:
	default:
	}
	select {
	case r.reset <- interval:
	default:
	}
}
