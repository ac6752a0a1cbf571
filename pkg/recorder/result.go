package recorder

import (
	"sync"
	"time"
)

// completion resolves a file-mode session outcome exactly once. The
// structural guarantee lives in sync.Once: whichever of the writer's
// finished-signal or the caller's safety timer arrives first wins, the
// other becomes a no-op.
type completion struct {
	once sync.Once
	ch   chan struct{}
	path string
}

func newCompletion() *completion {
	return &completion{ch: make(chan struct{})}
}

// resolve records the final path. Only the first call has any effect.
func (c *completion) resolve(path string) {
	c.once.Do(func() {
		c.path = path
		close(c.ch)
	})
}

// await blocks until resolved, or resolves with fallback after timeout.
// It always returns a value.
func (c *completion) await(timeout time.Duration, fallback string) string {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.ch:
	case <-timer.C:
		// The finished-writing signal never arrived; the partially
		// written file is still the best result we have.
		c.resolve(fallback)
		<-c.ch
	}
	return c.path
}

// resolved reports whether a result is already available.
func (c *completion) resolved() bool {
	select {
	case <-c.ch:
		return true
	default:
		return false
	}
}
