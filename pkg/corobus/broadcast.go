// Copyright © 2024 Timothy E. Peoples

package corobus

import (
	"context"
	"errors"

	"github.com/go-sage/corobus/pkg/coro"
)

// TryBroadcast appends value to every currently open channel, or to none.
// It scans all channels twice: first to check that at least one channel
// is open and that none is at capacity, then -- only if that check
// passes -- to actually append. This guarantees broadcast is all-or-
// nothing: either every open channel receives value, or the call fails
// and no channel is touched. It returns ErrNoChannel if no channel is
// open, and ErrWouldBlock if any open channel is full.
func (b *Bus) TryBroadcast(value uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.tryBroadcast(value)
	errno = err
	return err
}

func (b *Bus) tryBroadcast(value uint32) error {
	hasChannels := false
	for _, ch := range b.channels {
		if ch == nil {
			continue
		}
		hasChannels = true
		if ch.freeSpace() == 0 {
			return ErrWouldBlock
		}
	}
	if !hasChannels {
		return ErrNoChannel
	}

	for _, ch := range b.channels {
		if ch == nil {
			continue
		}
		ch.appendMany([]uint32{value})
		wakeOne(&ch.recvWaiters)
	}
	return nil
}

// Broadcast appends value to every open channel, parking the calling
// coroutine on the bus's broadcast queue until every channel has room if
// any is currently full. It returns ErrNoChannel if the bus has no open
// channels, either immediately or discovered after waking from a park.
func (b *Bus) Broadcast(ctx context.Context, value uint32) error {
	for {
		err := b.TryBroadcast(value)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrWouldBlock) {
			return err
		}

		if err := b.parkBroadcast(ctx); err != nil {
			return err
		}
	}
}

func (b *Bus) parkBroadcast(ctx context.Context) error {
	b.mu.Lock()
	hasChannels := false
	for _, ch := range b.channels {
		if ch != nil {
			hasChannels = true
			break
		}
	}
	if !hasChannels {
		b.mu.Unlock()
		return ErrNoChannel
	}
	handle := coro.Current(ctx)
	q := &b.broadcastWaiters
	b.mu.Unlock()

	var suspendErr error
	q.Park(handle, func() { suspendErr = coro.Suspend(ctx) })
	return suspendErr
}
