package nats

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// dispatcher hands each delivered message to its own goroutine. The NATS
// client invokes the subscription callback sequentially on one goroutine
// per subscription, so running handlers inline there would serialize
// pipeline runs regardless of the worker's concurrency setting. The
// handler itself bounds how many runs proceed at once.
type dispatcher struct {
	ctx     context.Context
	subject string
	handler func(context.Context, string) error
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func newDispatcher(ctx context.Context, subject string, handler func(context.Context, string) error, logger *slog.Logger) *dispatcher {
	return &dispatcher{ctx: ctx, subject: subject, handler: handler, logger: logger}
}

func (d *dispatcher) dispatch(data []byte) {
	if d.ctx.Err() != nil {
		return
	}
	jobID := strings.TrimSpace(string(data))
	if jobID == "" {
		d.logger.Warn("nats_empty_job_message", "subject", d.subject)
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.handler(d.ctx, jobID); err != nil {
			d.logger.Error("worker_handler_error", "job_id", jobID, "error", err)
		}
	}()
}

// wait blocks until every dispatched handler has returned.
func (d *dispatcher) wait() {
	d.wg.Wait()
}
