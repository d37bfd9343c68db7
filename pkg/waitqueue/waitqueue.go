// Copyright © 2024 Timothy E. Peoples

// Package waitqueue implements an ordered FIFO list of parked callers with
// one-at-a-time wakeup. It is the lowest-level building block of the
// corobus module: every blocking operation in [github.com/go-sage/corobus]
// parks on one of these queues and every non-blocking operation that makes
// progress wakes at most one waiter off of one.
//
// A Queue does not know what it is waiting for; the caller decides what
// "ready" means and re-checks its own condition after being woken, since a
// woken entry carries no reservation -- see [Queue.Park].
package waitqueue

import "container/list"

// An entry holds the handle parked on a Queue plus whether it has already
// been woken. The woken flag distinguishes a proper wakeup (the waker
// already detached the entry) from a spurious resume (the entry must
// detach itself); see [Queue.Park].
type entry struct {
	handle any
	woken  bool
}

// A Queue is an ordered, FIFO list of parked handles. The zero value is
// ready to use. A Queue is not safe for concurrent use by multiple
// goroutines without external synchronization -- callers in this module
// hold the coroutine runtime's admission gate, or a Bus-level mutex, while
// touching a Queue.
type Queue struct {
	waiters list.List
}

// Len reports the number of currently parked handles.
func (q *Queue) Len() int {
	return q.waiters.Len()
}

// Park appends handle to the tail of the receiver and calls suspend, which
// must block the caller until some other party calls [Queue.WakeOne] on
// this queue (or resumes it spuriously -- see below). Park returns true if
// the entry was properly woken (suspend returned because WakeOne selected
// this entry) and false if the resume was spurious, in which case the
// caller must re-check whatever condition it was waiting for and park
// again if still unsatisfied.
//
// suspend is called with the receiver already holding this handle's entry
// in the queue, mirroring wakeup_queue_suspend_this's park-then-suspend
// ordering: the entry must be visible to a concurrent WakeOne call before
// suspend blocks, or a wakeup could be missed.
func (q *Queue) Park(handle any, suspend func()) bool {
	e := &entry{handle: handle}
	elem := q.waiters.PushBack(e)

	suspend()

	if e.woken {
		// The waker already removed this entry from the list.
		return true
	}

	q.waiters.Remove(elem)
	return false
}

// WakeOne detaches the head of the receiver, marks it woken, and returns
// its handle together with true. If the receiver is empty, WakeOne is a
// no-op and returns (nil, false).
//
// WakeOne only marks the entry woken and hands the handle back to the
// caller; the caller is responsible for actually scheduling that handle to
// resume (e.g. by calling [github.com/go-sage/corobus/pkg/coro.Wakeup]).
func (q *Queue) WakeOne() (any, bool) {
	front := q.waiters.Front()
	if front == nil {
		return nil, false
	}

	e := front.Value.(*entry)
	q.waiters.Remove(front)
	e.woken = true

	return e.handle, true
}

// DrainAll wakes every parked handle, in FIFO order, calling wake for each
// one. It is used by Close to guarantee every waiter resumes within finite
// scheduler steps, per corobus's close-is-live invariant.
func (q *Queue) DrainAll(wake func(handle any)) {
	for {
		h, ok := q.WakeOne()
		if !ok {
			return
		}
		wake(h)
	}
}
