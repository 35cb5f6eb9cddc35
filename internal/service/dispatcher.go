package service

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Dispatcher decouples event ingestion from materialization: every group gets
// a bounded work queue drained by a single worker goroutine, so ingestion
// keeps up with the broker while same-group appends apply one at a time and
// different groups proceed in parallel.
type Dispatcher struct {
	buffer int

	mu      sync.Mutex
	queues  map[string]chan job
	ctx     context.Context
	workers *errgroup.Group
	started bool
}

type job struct {
	run  func(context.Context) error
	done chan error
}

// NewDispatcher creates a Dispatcher whose per-group queues hold up to buffer
// pending jobs before Do blocks (backpressure toward the broker).
func NewDispatcher(buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		buffer: buffer,
		queues: make(map[string]chan job),
	}
}

// Run starts the dispatcher and blocks until ctx is cancelled and every
// worker has drained. It must be called before Do.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already running")
	}
	workers, workerCtx := errgroup.WithContext(ctx)
	d.ctx = workerCtx
	d.workers = workers
	d.started = true
	d.mu.Unlock()

	<-ctx.Done()
	return d.workers.Wait()
}

// Do submits work for a group and waits for its result, preserving the
// caller's ack/nack decision while the group's worker serializes execution.
func (d *Dispatcher) Do(ctx context.Context, groupID string, run func(context.Context) error) error {
	queue, err := d.queue(groupID)
	if err != nil {
		return err
	}

	j := job{run: run, done: make(chan error, 1)}
	select {
	case queue <- j:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// queue returns the group's channel, spawning its worker on first use.
func (d *Dispatcher) queue(groupID string) (chan job, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return nil, fmt.Errorf("dispatcher not running")
	}
	queue, ok := d.queues[groupID]
	if !ok {
		queue = make(chan job, d.buffer)
		d.queues[groupID] = queue
		ctx := d.ctx
		d.workers.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case j := <-queue:
					j.done <- j.run(ctx)
				}
			}
		})
	}
	return queue, nil
}
