// Copyright © 2024 Timothy E. Peoples

package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/go-sage/corobus/pkg/corobus"
	"github.com/go-sage/corobus/pkg/coro"
)

// spawn starts the receiver's fixed pool of capacity coroutines on rt, each
// reading messages from the bus channel in, applying sfunc, and writing the
// result to out. The last of these coroutines to retire closes out.
//
// Each worker calls (*stage).enter exactly once, before entering its receive
// loop, and (*stage).leave exactly once, on retirement. Workers start up one
// at a time (the Runtime only ever runs one Coroutine body at once), so this
// is pure bookkeeping, never a blocking gate: nothing here can park a worker
// mid-loop, which matters because a worker parked on a raw condition
// variable while holding its Runtime's one turn token would stall every
// other coroutine, not just this stage's.
func (s *stage) spawn(rt *coro.Runtime, bus *corobus.Bus, in, out int) {
	var (
		mu        sync.Mutex
		remaining = s.capacity
	)

	retire := func() {
		mu.Lock()
		remaining--
		done := remaining == 0
		mu.Unlock()

		if done {
			bus.Close(out)
		}
	}

	for i := 0; i < s.capacity; i++ {
		rt.Spawn(func(ctx context.Context) error {
			started := s.enter()
			defer func() {
				s.leave(started)
				retire()
			}()

			var rerr error
			for {
				v, rerr2 := bus.Recv(ctx, in)
				if errors.Is(rerr2, corobus.ErrNoChannel) {
					break
				}
				if rerr2 != nil {
					rerr = rerr2
					break
				}

				out2, serr := s.sfunc(ctx, v)
				if serr != nil {
					rerr = serr
					break
				}

				if serr := bus.Send(ctx, out, out2); serr != nil {
					rerr = serr
					break
				}
			}

			return rerr
		})
	}
}
