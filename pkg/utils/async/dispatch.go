package async

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sfbackup/pkg/utils/logging"
)

// Group runs handlers in the background and lets the owner wait for them, e.g. before
// shutting down. The zero value is ready to use.
type Group struct {
	wg sync.WaitGroup
}

// Dispatch executes handler in a new goroutine tracked by the group
//
// The handler receives a background context carrying the logger of ctx, so cancelling
// ctx (typically an HTTP request context) does not stop it. Panics are recovered and
// logged with their stack, and a returned error is logged.
func (g *Group) Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	newCtx := newBackgroundContext(ctx)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logging.From(newCtx).Error("panic in async handler",
					"recover", r,
					"stack", string(debug.Stack()))
			}
		}()

		if err := handler(newCtx); err != nil {
			logging.From(newCtx).Error("error in async handler", "error", err)
		}
	}()
}

// Wait blocks until every dispatched handler has returned or ctx is done
func (g *Group) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "background handlers still running")
	}
}

// newBackgroundContext returns context.Background() carrying the logger of ctx
func newBackgroundContext(ctx context.Context) context.Context {
	return logging.With(context.Background(), logging.From(ctx))
}
