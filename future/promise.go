package future

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/xraph/await"
)

// promise is the minimal future primitive: a one-shot resolution with
// waiters and ordered callbacks. A single mutex guards the callback
// list; waiters block on the done channel so no waiter can observe a
// partially written result.
type promise struct {
	mu        sync.Mutex
	done      chan struct{}
	status    *await.RunStatus
	err       error
	callbacks []func()

	logger  *slog.Logger
	onFault func(recovered any)
}

func newPromise(logger *slog.Logger, onFault func(any)) *promise {
	return &promise{
		done:    make(chan struct{}),
		logger:  logger,
		onFault: onFault,
	}
}

// resolve records the outcome and unblocks everything. Only the first
// call wins; later calls report false and change nothing. Callbacks
// run on the resolving goroutine, in registration order, after the done
// channel is closed.
func (p *promise) resolve(status *await.RunStatus, err error, beforeCallbacks func()) bool {
	p.mu.Lock()
	select {
	case <-p.done:
		p.mu.Unlock()
		return false
	default:
	}
	p.status = status
	p.err = err
	close(p.done)
	cbs := p.callbacks
	p.callbacks = nil
	p.mu.Unlock()

	if beforeCallbacks != nil {
		beforeCallbacks()
	}
	for _, cb := range cbs {
		p.invoke(cb)
	}
	return true
}

// addCallback registers cb, or invokes it immediately (on the calling
// goroutine, before returning) when already resolved.
func (p *promise) addCallback(cb func()) {
	p.mu.Lock()
	select {
	case <-p.done:
		p.mu.Unlock()
		p.invoke(cb)
		return
	default:
	}
	p.callbacks = append(p.callbacks, cb)
	p.mu.Unlock()
}

// invoke runs one callback with panic isolation: a panicking callback
// must not take down the resolver or starve later callbacks.
func (p *promise) invoke(cb func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("completion callback panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			if p.onFault != nil {
				p.onFault(r)
			}
		}
	}()
	cb()
}

func (p *promise) resolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// outcome returns the recorded result. Only meaningful once resolved.
func (p *promise) outcome() (*await.RunStatus, error) {
	return p.status, p.err
}

// wait blocks until resolution or ctx expiry.
func (p *promise) wait(ctx context.Context) (*await.RunStatus, error) {
	select {
	case <-p.done:
		return p.status, p.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, await.ErrResultTimeout
		}
		return nil, ctx.Err()
	}
}
