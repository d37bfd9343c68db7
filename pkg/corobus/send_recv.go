// Copyright © 2024 Timothy E. Peoples

package corobus

import (
	"context"
	"errors"

	"github.com/go-sage/corobus/pkg/coro"
)

// TrySend appends value to the channel id without blocking. It returns
// ErrNoChannel if id is invalid or closed, and ErrWouldBlock if the
// channel is at capacity. On success it wakes at most one parked
// consumer.
func (b *Bus) TrySend(id int, value uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.trySend(id, value)
	errno = err
	return err
}

func (b *Bus) trySend(id int, value uint32) error {
	ch, err := b.channelLocked(id)
	if err != nil {
		return err
	}
	if ch.freeSpace() == 0 {
		return ErrWouldBlock
	}

	ch.appendMany([]uint32{value})
	wakeOne(&ch.recvWaiters)
	return nil
}

// Send appends value to the channel id, parking the calling coroutine
// (see coro.Current(ctx)) until room is available if the channel is
// currently full. It returns ErrNoChannel if id is invalid, or if the
// channel is closed while the caller is parked; it returns ctx.Err() if
// ctx is canceled while parked.
func (b *Bus) Send(ctx context.Context, id int, value uint32) error {
	for {
		err := b.TrySend(id, value)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrWouldBlock) {
			return err
		}

		if err := b.parkSend(ctx, id); err != nil {
			return err
		}
	}
}

// parkSend parks the current coroutine on channel id's send queue,
// returning ErrNoChannel if the channel no longer exists and any context
// error if ctx is canceled while parked.
func (b *Bus) parkSend(ctx context.Context, id int) error {
	b.mu.Lock()
	ch, err := b.channelLocked(id)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	handle := coro.Current(ctx)
	q := &ch.sendWaiters
	b.mu.Unlock()

	var suspendErr error
	q.Park(handle, func() { suspendErr = coro.Suspend(ctx) })
	return suspendErr
}

// TryRecv removes and returns the head message of channel id without
// blocking. It returns ErrNoChannel if id is invalid or closed, and
// ErrWouldBlock if the channel is empty. On success it wakes at most one
// parked producer and one parked broadcaster, since draining a channel may
// be exactly what a broadcast was waiting for.
func (b *Bus) TryRecv(id int) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, err := b.tryRecv(id)
	errno = err
	return v, err
}

func (b *Bus) tryRecv(id int) (uint32, error) {
	ch, err := b.channelLocked(id)
	if err != nil {
		return 0, err
	}
	if len(ch.buffer) == 0 {
		return 0, ErrWouldBlock
	}

	v := ch.popFirstMany(1)[0]
	wakeOne(&ch.sendWaiters)
	wakeOne(&b.broadcastWaiters)
	return v, nil
}

// Recv removes and returns the head message of channel id, parking the
// calling coroutine until one is available if the channel is currently
// empty. Error semantics mirror Send.
func (b *Bus) Recv(ctx context.Context, id int) (uint32, error) {
	for {
		v, err := b.TryRecv(id)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrWouldBlock) {
			return 0, err
		}

		if err := b.parkRecv(ctx, id); err != nil {
			return 0, err
		}
	}
}

func (b *Bus) parkRecv(ctx context.Context, id int) error {
	b.mu.Lock()
	ch, err := b.channelLocked(id)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	handle := coro.Current(ctx)
	q := &ch.recvWaiters
	b.mu.Unlock()

	var suspendErr error
	q.Park(handle, func() { suspendErr = coro.Suspend(ctx) })
	return suspendErr
}
