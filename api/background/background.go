// Package background runs detached work that must finish before shutdown.
package background

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrClosed = errors.New("background is shutting down")

type Background struct {
	log    logrus.FieldLogger
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func New(log logrus.FieldLogger) *Background {
	return &Background{log: log}
}

// Go runs fn in its own goroutine. Errors and panics are logged, never
// propagated to the caller.
func (b *Background) Go(name string, fn func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		defer func() {
			if rec := recover(); rec != nil {
				b.log.WithField("task", name).Error(fmt.Sprintf("panic: %v", rec))
			}
		}()

		if err := fn(); err != nil {
			b.log.WithFields(logrus.Fields{
				"task":    name,
				"message": err,
			}).Error("background task failed")
		}
	}()

	return nil
}

// Wait blocks until every task started so far has returned.
func (b *Background) Wait() {
	b.wg.Wait()
}

// Shutdown refuses new tasks and waits for the running ones or ctx.
func (b *Background) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
