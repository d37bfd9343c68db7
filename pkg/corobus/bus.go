// Copyright © 2024 Timothy E. Peoples

// Package corobus implements a cooperative in-process message bus: a
// dynamically allocated set of bounded FIFO channels over which
// coroutines (see "github.com/go-sage/corobus/pkg/coro") exchange uint32
// messages, with blocking and non-blocking send/recv, all-or-nothing
// broadcast across every open channel, and batched send/recv.
//
// A Bus is the Go analogue of original_source/1/corobus.c's
// struct coro_bus: a sparse table of channels (ids are the smallest
// vacant slot, reused on Open) plus one broadcast waiter queue shared
// across every channel. The hard part -- and the part spec.md actually
// specifies -- is the channel state machine and the waiter/wakeup
// protocol in channel.go, send_recv.go, batch.go, and broadcast.go; Bus
// itself is mostly bookkeeping for the channel table.
package corobus

import (
	"sync"

	"github.com/go-sage/corobus/pkg/coro"
	"github.com/go-sage/corobus/pkg/waitqueue"
)

// A Bus owns a dynamically sized table of channels and the broadcast
// waiter queue shared across all of them. The zero value is not usable;
// construct one with New.
//
// Bus operations lock an internal mutex around every mutation of the
// channel table and its waiter queues. This is a belt, not the actual
// mutual-exclusion mechanism spec.md §5 requires: the real guarantee --
// that no two coroutines ever touch bus state concurrently -- comes from
// routing every call through a coro.Runtime, whose single-token
// dispatcher ensures only one Coroutine body ever runs at a time. The
// mutex exists so Open/Close (and tests) may also be called from a
// goroutine that isn't itself a Coroutine, e.g. during setup or teardown.
type Bus struct {
	mu               sync.Mutex
	channels         []*channel
	broadcastWaiters waitqueue.Queue
}

// New returns an empty Bus with no open channels.
func New() *Bus {
	return &Bus{}
}

// Delete releases the receiver's channel table. The caller is responsible
// for ensuring no coroutine is parked on any channel or the broadcast
// queue at the time Delete is called -- Delete does not drain anything,
// mirroring coro_bus_delete's assumption that the caller has already
// quiesced the bus.
func (b *Bus) Delete() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.channels = nil
}

// Open allocates a new channel with the given capacity and returns its id.
// The lowest vacant slot in the channel table is reused; if none exists, a
// new slot is appended. Open always succeeds in this implementation: the
// original C API's allocation-failure path has no Go analogue short of an
// out-of-memory panic from the runtime allocator, which Open does not
// attempt to recover from.
func (b *Bus) Open(capacity int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, err := b.open(capacity)
	errno = err
	return id, err
}

func (b *Bus) open(capacity int) (int, error) {
	for i, ch := range b.channels {
		if ch == nil {
			b.channels[i] = &channel{capacity: capacity}
			return i, nil
		}
	}

	b.channels = append(b.channels, &channel{capacity: capacity})
	return len(b.channels) - 1, nil
}

// Close closes the channel with the given id. Close marks the slot vacant
// before draining its waiter queues (and the bus-wide broadcast queue),
// since a woken coroutine must observe the slot as already vacant rather
// than being able to re-park on a queue about to be discarded. Every
// coroutine parked on the channel's send queue, recv queue, or the bus's
// broadcast queue is woken. A woken sender or receiver next sees
// ErrNoChannel from its blocking call's outer retry loop; a woken
// broadcaster retries against the channels that remain open, and sees
// ErrNoChannel only if none does.
func (b *Bus) Close(id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.close(id)
	errno = err
	return err
}

func (b *Bus) close(id int) error {
	ch, err := b.channelLocked(id)
	if err != nil {
		return err
	}

	b.channels[id] = nil

	wake := func(h any) { coro.Wakeup(h.(coro.Handle)) }
	ch.sendWaiters.DrainAll(wake)
	ch.recvWaiters.DrainAll(wake)
	b.broadcastWaiters.DrainAll(wake)

	return nil
}

// channelLocked returns the channel at id, or ErrNoChannel if id is out of
// range or that slot is vacant. b.mu must already be held.
func (b *Bus) channelLocked(id int) (*channel, error) {
	if id < 0 || id >= len(b.channels) || b.channels[id] == nil {
		return nil, ErrNoChannel
	}
	return b.channels[id], nil
}

// wakeOne wakes the head of q, if any, by handing its handle to
// coro.Wakeup. It is a no-op if q is empty.
func wakeOne(q *waitqueue.Queue) {
	h, ok := q.WakeOne()
	if !ok {
		return
	}
	coro.Wakeup(h.(coro.Handle))
}
