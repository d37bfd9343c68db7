// Copyright © 2024 Timothy E. Peoples

package pipeline

import (
	"context"

	"github.com/go-sage/corobus/pkg/coro"
)

// Run executes the Pipeline defined for the receiver as a set of coroutines
// sharing a single coro.Runtime: one for the Feed method, a fixed pool of
// capacity coroutines per registered stage, one for the Collect method, and
// one for each function registered through Go. Bus channels are opened
// between Feed and the first stage, between each consecutive pair of
// stages, and between the last stage and Collect.
//
// Run blocks until every coroutine has completed -- either successfully or
// until any one of them returns a non-nil error, which cancels the context
// given to all the others.
//
// If the receiver has no stages registered, ErrNoStages is returned.
// Otherwise, any error returned is the first one returned by an underlying
// coroutine.
func (p *Pipeline) Run(ctx context.Context) error {
	if p == nil {
		return ErrNilReceiver
	}

	rt, cancel, err := p.start(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	return rt.Wait()
}

// start locks the receiver just long enough to mark it started, open the
// inter-stage channels, and spawn every coroutine, then returns the shared
// Runtime so Run can Wait on it without holding the lock for the whole run.
func (p *Pipeline) start(ctx context.Context) (*coro.Runtime, context.CancelFunc, error) {
	p.Lock()
	defer p.Unlock()

	if len(p.stages) == 0 {
		return nil, nil, ErrNoStages
	}

	p.started = true

	rt, _, cancel := coro.New(ctx)

	for _, fn := range p.extra {
		rt.Spawn(fn)
	}

	in, err := p.bus.Open(1)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	rt.Spawn(func(ctx context.Context) error {
		defer p.bus.Close(in)
		return p.impl.Feed(ctx, p.bus, in)
	})

	prev := in
	for _, s := range p.stages {
		out, err := p.bus.Open(1)
		if err != nil {
			cancel()
			return nil, nil, err
		}
		s.spawn(rt, p.bus, prev, out)
		prev = out
	}

	rt.Spawn(func(ctx context.Context) error {
		return p.impl.Collect(ctx, p.bus, prev)
	})

	return rt, cancel, nil
}
