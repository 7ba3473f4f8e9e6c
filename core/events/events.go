// Package events fans domain events out to subscribers without blocking the
// publisher.
package events

import (
	"context"
	"sync"

	"github.com/irsalhamdi/e-commerce-cart/api/background"
	"github.com/sirupsen/logrus"
)

type Event interface {
	Name() string
	AggregateID() string
}

type Handler func(ctx context.Context, evt Event) error

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Bus delivers every published event to the handlers subscribed to its
// name. Handlers run detached from the request; they keep its values but not
// its cancellation.
type Bus struct {
	log      logrus.FieldLogger
	bg       *background.Background
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewBus(log logrus.FieldLogger, bg *background.Background) *Bus {
	return &Bus{
		log:      log,
		bg:       bg,
		handlers: make(map[string][]Handler),
	}
}

func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

func (b *Bus) Publish(ctx context.Context, evt Event) error {
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[evt.Name()]...)
	b.mu.RUnlock()

	detached := context.WithoutCancel(ctx)
	for _, h := range hs {
		h := h
		if err := b.bg.Go(evt.Name(), func() error { return h(detached, evt) }); err != nil {
			return err
		}
	}

	b.log.WithFields(logrus.Fields{
		"event":     evt.Name(),
		"aggregate": evt.AggregateID(),
		"handlers":  len(hs),
	}).Debug("event published")
	return nil
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }

// Log records every event it receives at info level.
func Log(log logrus.FieldLogger) Handler {
	return func(ctx context.Context, evt Event) error {
		log.WithFields(logrus.Fields{
			"event":     evt.Name(),
			"aggregate": evt.AggregateID(),
		}).Info("cart activity")
		return nil
	}
}
