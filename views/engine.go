// Package views moves view events off the request path. Handlers publish a
// ViewEvent on an in-process event bus and a Tracker module records it in the
// document store.
package views

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	. "github.com/plutoid/plutoid/utils/log"
)

const (
	// Topic carrying one JSON encoded model.ViewEvent per message.
	TopicPostViewed = "post.viewed"
)

// NewEventBus creates the in-process bus modules talk over.
func NewEventBus() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            100,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewStdLogger(false, false),
	)
}

// Engine manages shared resources and execution lifecycle of each module.
type Engine struct {
	// Module's lifetime is bound to Engine's lifetime. Each Module runs in a
	// separate goroutine.
	Modules []Module

	ctx    context.Context
	cancel context.CancelFunc

	EventBus *gochannel.GoChannel

	wg sync.WaitGroup
}

func NewEngine(ms []Module, ctx context.Context, e *gochannel.GoChannel) *Engine {
	ctx, cancel := context.WithCancel(ctx)
	return &Engine{
		Modules:  ms,
		ctx:      ctx,
		cancel:   cancel,
		EventBus: e,
	}
}

// Start runs every module in the background.
func (e *Engine) Start() {
	for idx := range e.Modules {
		e.wg.Add(1)
		go func(m Module) {
			defer e.wg.Done()
			Log.Infof("start engine module %s", m.Name())
			RunModuleWithGracefulRestart(e.ctx, m)
			Log.Infof("Module %s finished execution.", m.Name())
		}(e.Modules[idx])
	}
}

// Shutdown stops all modules, waits for them and closes the event bus.
func (e *Engine) Shutdown() {
	Log.Infoln("Starting graceful shutdown process. Goodbye!")
	e.cancel()
	e.wg.Wait()

	for _, m := range e.Modules {
		m.Shutdown()
		Log.Infof("Module %s shut down.", m.Name())
	}
	if err := e.EventBus.Close(); err != nil {
		Log.WithError(err).Warn("event bus close failed")
	}
}
