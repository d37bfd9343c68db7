// Copyright © 2024 Timothy E. Peoples

package corobus

import "github.com/go-sage/corobus/pkg/waitqueue"

// A channel is a bounded FIFO of uint32 messages plus the two waiter
// queues parked producers and consumers suspend on. It is the Go analogue
// of original_source/1/corobus.c's struct coro_bus_channel and its
// embedded struct data_vector.
type channel struct {
	capacity int
	buffer   []uint32

	sendWaiters waitqueue.Queue // producers waiting for free space
	recvWaiters waitqueue.Queue // consumers waiting for a message
}

// freeSpace reports how many more messages the receiver can hold.
func (ch *channel) freeSpace() int {
	return ch.capacity - len(ch.buffer)
}

// appendMany appends values to the tail of the buffer. The caller must
// have already checked that len(values) <= ch.freeSpace().
func (ch *channel) appendMany(values []uint32) {
	ch.buffer = append(ch.buffer, values...)
}

// popFirstMany removes and returns the first n messages, shifting the
// remainder down to index 0 -- the same data_vector_pop_first_many
// memmove-down discipline the original uses, so the buffer's backing array
// never grows unboundedly across repeated pop/append cycles.
func (ch *channel) popFirstMany(n int) []uint32 {
	out := make([]uint32, n)
	copy(out, ch.buffer[:n])

	remaining := copy(ch.buffer, ch.buffer[n:])
	ch.buffer = ch.buffer[:remaining]

	return out
}
