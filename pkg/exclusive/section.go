package exclusive

import (
	"context"
	"sync"
	"time"
)

// Section serializes bodies in arrival order. The zero value is not usable;
// create sections with New.
type Section struct {
	mu     sync.Mutex
	busy   bool
	queue  []*ticket
	onWait func(time.Duration)
}

type ticket struct {
	ready chan struct{}
}

type heldKey struct {
	s *Section
}

// Option configures a Section.
type Option func(*Section)

// WithWaitObserver reports how long each caller waited before entering.
func WithWaitObserver(fn func(time.Duration)) Option {
	return func(s *Section) {
		s.onWait = fn
	}
}

// New creates an idle section.
func New(opts ...Option) *Section {
	s := &Section{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes body once every earlier caller has finished. It returns
// body's error, or ctx.Err() if ctx ends before the section is granted.
func (s *Section) Run(ctx context.Context, body func(ctx context.Context) error) error {
	if s.Held(ctx) {
		return body(ctx)
	}

	start := time.Now()
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if s.onWait != nil {
		s.onWait(time.Since(start))
	}

	return body(context.WithValue(ctx, heldKey{s}, true))
}

// Do is Run for bodies that produce a value.
func Do[T any](ctx context.Context, s *Section, body func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := s.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = body(ctx)
		return err
	})
	return result, err
}

// Held reports whether ctx was handed out by this section's active body.
// Any goroutine carrying such a context is treated as the holder, so bodies
// that fan out with their context give up mutual exclusion among those
// goroutines.
func (s *Section) Held(ctx context.Context) bool {
	held, _ := ctx.Value(heldKey{s}).(bool)
	return held
}

// Waiting returns the number of callers queued behind the active body.
func (s *Section) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Busy reports whether a body is running.
func (s *Section) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Section) acquire(ctx context.Context) error {
	s.mu.Lock()
	if !s.busy {
		s.busy = true
		s.mu.Unlock()
		return nil
	}

	t := &ticket{ready: make(chan struct{})}
	s.queue = append(s.queue, t)
	s.mu.Unlock()

	select {
	case <-t.ready:
		return nil
	case <-ctx.Done():
	}

	s.mu.Lock()
	select {
	case <-t.ready:
		// Granted while giving up; hand the section to the next caller.
		s.mu.Unlock()
		s.release()
		return ctx.Err()
	default:
	}
	for i, queued := range s.queue {
		if queued == t {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return ctx.Err()
}

// release passes the section to the oldest waiter, or marks it idle.
func (s *Section) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		s.busy = false
		return
	}

	next := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	close(next.ready)
}
