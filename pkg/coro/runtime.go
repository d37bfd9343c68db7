// Copyright © 2024 Timothy E. Peoples

// Package coro provides a minimal cooperative coroutine runtime realizing
// the abstract runtime contract -- current/suspend/wakeup -- that
// "github.com/go-sage/corobus" is written against (spec.md §5/§6).
//
// A Coroutine is, mechanically, a goroutine, but only one Coroutine's body
// ever actually executes at a time: the Runtime hands a single reusable "turn"
// token to exactly one ready Coroutine, and every other spawned or woken
// Coroutine sits blocked on its own turn channel until the Runtime grants
// it one. Suspend relinquishes the token and blocks until some other party
// calls Wakeup, which re-enqueues the Coroutine as ready (it does not run
// it -- the Runtime dispatches the next turn whenever the token is free);
// this is exactly the "runs later, cooperatively" behavior spec.md
// requires of wakeup. Token handoff is strict FIFO over the ready queue,
// so Coroutines become runnable in the order they were spawned or woken,
// matching the ordering guarantees spec.md §5 promises of a real
// single-threaded cooperative scheduler.
package coro

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-sage/corobus/pkg/errgroupx"
)

// A Handle identifies a single Coroutine. It is the Go stand-in for the
// original corobus.c's "struct coro *".
type Handle = *Coroutine

// A Coroutine is one cooperatively scheduled unit of work.
type Coroutine struct {
	id   uint64
	rt   *Runtime
	turn chan struct{} // buffered 1: receiving it grants this Coroutine the token
}

// ID returns a value unique (for the lifetime of its Runtime) to the
// receiver. It is useful for logging/debugging and carries no meaning to
// the bus itself.
func (c *Coroutine) ID() uint64 { return c.id }

// A Runtime owns a set of Coroutines and the single token that makes them
// cooperative: dispatch never grants a turn to more than one Coroutine at
// once. The zero value is not usable; construct one with New.
type Runtime struct {
	mu      sync.Mutex
	ready   list.List // of Handle, FIFO
	current Handle

	group *errgroupx.Group
	ctx   context.Context
	idSeq atomic.Uint64
}

// New returns a Runtime ready to Spawn Coroutines, along with a derived
// Context (canceled the first time a spawned body returns a non-nil
// error, mirroring errgroupx.New) and its CancelFunc.
func New(ctx context.Context) (*Runtime, context.Context, context.CancelFunc) {
	eg, ctx, cancel := errgroupx.New(ctx)
	return &Runtime{group: eg, ctx: ctx}, ctx, cancel
}

type coroKey struct{}

// Spawn enqueues a new Coroutine running body and returns its Handle
// immediately. body does not begin executing until the Runtime's token
// reaches it, which may not happen until every previously ready or
// currently running Coroutine has run and suspended or finished. body
// observes its own Handle via Current(ctx).
func (rt *Runtime) Spawn(body func(ctx context.Context) error) Handle {
	co := &Coroutine{
		id:   rt.idSeq.Add(1),
		rt:   rt,
		turn: make(chan struct{}, 1),
	}

	rt.mu.Lock()
	rt.ready.PushBack(co)
	rt.mu.Unlock()

	rt.group.GoContext(rt.ctx, func(ctx context.Context) error {
		select {
		case <-co.turn:
		case <-ctx.Done():
			rt.finish(co)
			return ctx.Err()
		}

		err := body(context.WithValue(ctx, coroKey{}, co))
		rt.finish(co)
		return err
	})

	rt.dispatch()
	return co
}

// Wait blocks until every Coroutine spawned from the receiver has
// returned, and returns the first non-nil error any of them returned. That
// first error also cancels the Runtime's derived Context, unblocking any
// still-suspended Coroutine's Suspend call with a context error, so the
// remaining Coroutines can return too.
func (rt *Runtime) Wait() error {
	return rt.group.Wait()
}

// Current returns the Handle of the Coroutine running on ctx, or nil if
// ctx was not derived from a Runtime-spawned body (e.g. a goroutine
// driving Open/Close/Broadcast setup from outside any Coroutine).
func Current(ctx context.Context) Handle {
	co, _ := ctx.Value(coroKey{}).(*Coroutine)
	return co
}

// Suspend releases the current Coroutine's hold on its Runtime's token and
// blocks until some other party calls Wakeup(Current(ctx)) and the
// Runtime's dispatcher reaches it. It returns a non-nil error only if ctx
// is canceled while suspended; the blocking operations in
// "github.com/go-sage/corobus/pkg/corobus" then detach their waiter entry
// and return that error to their caller.
//
// Suspend panics if ctx carries no Coroutine; it must only be called from
// within a body passed to (*Runtime).Spawn.
func Suspend(ctx context.Context) error {
	co := Current(ctx)
	if co == nil {
		panic("coro: Suspend called outside a Coroutine body")
	}

	co.rt.release(co)

	select {
	case <-co.turn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wakeup schedules h to resume. It does not run h itself and does not
// block; h becomes runnable whenever the Runtime's dispatcher next has a
// free token and h reaches the head of the ready queue. Wakeup must only
// be called for a Handle that is actually currently suspended (parked on
// some waitqueue.Queue); corobus's own use of Wakeup -- always paired with
// a waitqueue.Queue.WakeOne that just detached that exact entry --
// satisfies this automatically.
func Wakeup(h Handle) {
	if h == nil {
		return
	}
	rt := h.rt

	rt.mu.Lock()
	rt.ready.PushBack(h)
	rt.mu.Unlock()

	rt.dispatch()
}

// release clears co as the current token holder, if it still is one, and
// lets the dispatcher consider the next ready Coroutine.
func (rt *Runtime) release(co Handle) {
	rt.mu.Lock()
	if rt.current == co {
		rt.current = nil
	}
	rt.mu.Unlock()

	rt.dispatch()
}

// finish releases the token on behalf of a Coroutine whose body has
// returned (or been abandoned due to context cancellation) rather than
// merely suspended. It does nothing beyond release; such a Coroutine is
// never pushed onto the ready queue again.
func (rt *Runtime) finish(co Handle) {
	rt.release(co)
}

// dispatch grants the token to the head of the ready queue, if the token
// is currently free and the queue is non-empty. It is idempotent and safe
// to call any time the ready queue or current holder may have changed.
func (rt *Runtime) dispatch() {
	rt.mu.Lock()
	if rt.current != nil {
		rt.mu.Unlock()
		return
	}

	front := rt.ready.Front()
	if front == nil {
		rt.mu.Unlock()
		return
	}

	rt.ready.Remove(front)
	co := front.Value.(Handle)
	rt.current = co
	rt.mu.Unlock()

	co.turn <- struct{}{}
}
