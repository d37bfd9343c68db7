// Copyright © 2024 Timothy E. Peoples

package corobus

import (
	"context"
	"errors"
)

// TrySendV writes as many of values, in order, as fit in channel id's
// remaining capacity -- min(len(values), capacity-len(buffer)) -- and
// returns that count. It wakes at most one parked consumer if it wrote
// anything. It returns ErrWouldBlock only if the channel is already full
// and len(values) > 0; an empty values is accepted vacuously and returns
// (0, nil) regardless of fullness (spec.md's open question on this case;
// see DESIGN.md).
func (b *Bus) TrySendV(id int, values []uint32) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, err := b.trySendV(id, values)
	errno = err
	return n, err
}

func (b *Bus) trySendV(id int, values []uint32) (int, error) {
	ch, err := b.channelLocked(id)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}

	free := ch.freeSpace()
	if free == 0 {
		return 0, ErrWouldBlock
	}

	n := len(values)
	if n > free {
		n = free
	}

	ch.appendMany(values[:n])
	wakeOne(&ch.recvWaiters)
	return n, nil
}

// SendV sends all of values to channel id, blocking as needed. It returns
// as soon as further progress would require blocking and at least one
// message has already been sent, so a large batch never convoys behind a
// full channel once partial progress has been made; it only parks when no
// progress has yet been made on the current call. The partial-count return
// is scoped to would-block only: if channel id disappears partway through
// (ErrNoChannel), the count already sent is still returned but alongside
// that error, never silently swallowed into a nil error.
func (b *Bus) SendV(ctx context.Context, id int, values []uint32) (int, error) {
	sent := 0
	for sent < len(values) {
		n, err := b.TrySendV(id, values[sent:])
		if n > 0 {
			sent += n
			continue
		}
		if err == nil {
			break
		}
		if !errors.Is(err, ErrWouldBlock) {
			return sent, err
		}
		if sent > 0 {
			return sent, nil
		}

		if err := b.parkSend(ctx, id); err != nil {
			return 0, err
		}
	}
	return sent, nil
}

// TryRecvV reads up to len(out) messages from channel id's head into out,
// in FIFO order, and returns the count actually read --
// min(len(buffer), len(out)). It returns ErrWouldBlock only if the channel
// is empty, and that check comes first: an empty out returns (0, nil) on a
// non-empty channel but ErrWouldBlock on an empty one, unlike TrySendV's
// count-zero case, which succeeds regardless of fullness. When it reads at
// least one message it wakes at most one parked producer and one parked
// broadcaster.
func (b *Bus) TryRecvV(id int, out []uint32) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, err := b.tryRecvV(id, out)
	errno = err
	return n, err
}

func (b *Bus) tryRecvV(id int, out []uint32) (int, error) {
	ch, err := b.channelLocked(id)
	if err != nil {
		return 0, err
	}
	if len(ch.buffer) == 0 {
		return 0, ErrWouldBlock
	}
	if len(out) == 0 {
		return 0, nil
	}

	n := len(ch.buffer)
	if n > len(out) {
		n = len(out)
	}

	copy(out, ch.popFirstMany(n))
	wakeOne(&ch.sendWaiters)
	wakeOne(&b.broadcastWaiters)
	return n, nil
}

// RecvV blocks until at least one message is available on channel id, then
// returns as many as fit in out (up to len(out)) from the first
// successful pop -- it does not wait to fill out's full capacity. Callers
// wanting more must call again.
func (b *Bus) RecvV(ctx context.Context, id int, out []uint32) (int, error) {
	for {
		n, err := b.TryRecvV(id, out)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, ErrWouldBlock) {
			return 0, err
		}

		if err := b.parkRecv(ctx, id); err != nil {
			return 0, err
		}
	}
}
