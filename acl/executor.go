package acl

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// serialExecutor is the Go-native analogue of the source's single
// "handler": one goroutine drains a FIFO of closures, so every mutation
// of sub-manager state is serialized without any lock on the state
// itself. Both the façade's public entry points and inbound HCI events
// post their work here.
type serialExecutor struct {
	log    *logrus.Entry
	tasks  chan func()
	closed bool
	mu     sync.Mutex
}

func newSerialExecutor(log *logrus.Entry) *serialExecutor {
	e := &serialExecutor{log: log, tasks: make(chan func(), 256)}
	go e.run()
	return e
}

// Post enqueues f to run on the executor goroutine. Posting after Stop
// has begun draining is a no-op: per spec, pending callbacks scheduled
// before stop() may still fire, but new work after teardown begins is
// simply dropped rather than panicking on a closed channel.
func (e *serialExecutor) Post(f func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		e.log.Debug("serialExecutor: dropping task posted after shutdown")
		return
	}
	e.tasks <- f
}

// run drains tasks until the channel is closed, guaranteeing every task
// queued before Stop completes before run returns.
func (e *serialExecutor) run() {
	for f := range e.tasks {
		f()
	}
}

// stop closes the task channel; run will finish every already-queued
// task and then return.
func (e *serialExecutor) stop() {
	e.mu.Lock()
	e.closed = true
	close(e.tasks)
	e.mu.Unlock()
}
