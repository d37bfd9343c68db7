// Copyright © 2024 Timothy E. Peoples

package waitqueue

import "testing"

func TestWakeOneEmpty(t *testing.T) {
	var q Queue

	if h, ok := q.WakeOne(); ok || h != nil {
		t.Fatalf("WakeOne on empty queue = (%v, %v); want (nil, false)", h, ok)
	}
}

// parkedWaiter drives one goroutine through Park, signaling entered the
// instant its entry is in the queue (establishing a happens-before edge the
// test can safely wait on instead of polling Len) and blocking on suspend
// until the test closes it.
type parkedWaiter struct {
	handle  int
	entered chan struct{}
	suspend chan struct{}
	resumed chan bool
}

func newParkedWaiter(q *Queue, handle int) *parkedWaiter {
	w := &parkedWaiter{
		handle:  handle,
		entered: make(chan struct{}),
		suspend: make(chan struct{}),
		resumed: make(chan bool, 1),
	}

	go func() {
		woken := q.Park(w.handle, func() {
			close(w.entered)
			<-w.suspend
		})
		w.resumed <- woken
	}()

	<-w.entered
	return w
}

func TestParkWakeOneOrdering(t *testing.T) {
	var q Queue

	// Parking one at a time, waiting for "entered" before starting the
	// next, guarantees FIFO submission order 0, 1, 2.
	w0 := newParkedWaiter(&q, 0)
	w1 := newParkedWaiter(&q, 1)
	w2 := newParkedWaiter(&q, 2)

	if got := q.Len(); got != 3 {
		t.Fatalf("Len() = %d; want 3", got)
	}

	h, ok := q.WakeOne()
	if !ok || h.(int) != 0 {
		t.Fatalf("first WakeOne = (%v, %v); want (0, true)", h, ok)
	}
	close(w0.suspend)
	if !<-w0.resumed {
		t.Fatal("w0 should have been properly woken")
	}

	h, ok = q.WakeOne()
	if !ok || h.(int) != 1 {
		t.Fatalf("second WakeOne = (%v, %v); want (1, true)", h, ok)
	}
	close(w1.suspend)
	if !<-w1.resumed {
		t.Fatal("w1 should have been properly woken")
	}

	if got := q.Len(); got != 1 {
		t.Fatalf("Len() = %d; want 1", got)
	}

	// w2 resumes spuriously (never woken) and must self-detach.
	close(w2.suspend)
	if <-w2.resumed {
		t.Fatal("w2 should have resumed spuriously, not woken")
	}
	if got := q.Len(); got != 0 {
		t.Fatalf("Len() after spurious resume = %d; want 0", got)
	}
}

func TestDrainAll(t *testing.T) {
	var q Queue

	ws := []*parkedWaiter{
		newParkedWaiter(&q, 0),
		newParkedWaiter(&q, 1),
		newParkedWaiter(&q, 2),
	}

	var order []int
	q.DrainAll(func(h any) {
		order = append(order, h.(int))
		for _, w := range ws {
			if w.handle == h.(int) {
				close(w.suspend)
			}
		}
	})

	if got := q.Len(); got != 0 {
		t.Fatalf("Len() after DrainAll = %d; want 0", got)
	}

	want := []int{0, 1, 2}
	for i, v := range want {
		if order[i] != v {
			t.Fatalf("DrainAll order = %v; want %v", order, want)
		}
	}
	for _, w := range ws {
		if !<-w.resumed {
			t.Fatalf("handle %d should have been properly woken by DrainAll", w.handle)
		}
	}
}
