package jobs

import (
	"context"
	"fmt"
)

// Dispatcher routes jobs to the handler registered for their type.
type Dispatcher struct {
	handlers map[JobType]JobHandler
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[JobType]JobHandler)}
}

// Register sets the handler for t, replacing any previous one.
func (d *Dispatcher) Register(t JobType, h JobHandler) {
	d.handlers[t] = h
}

// Handles reports whether a handler is registered for t.
func (d *Dispatcher) Handles(t JobType) bool {
	_, ok := d.handlers[t]
	return ok
}

// Handle is a JobHandler that dispatches on job.Type.
func (d *Dispatcher) Handle(ctx context.Context, job *Job) error {
	h, ok := d.handlers[job.Type]
	if !ok {
		return fmt.Errorf("no handler for job type %q", job.Type)
	}
	return h(ctx, job)
}
