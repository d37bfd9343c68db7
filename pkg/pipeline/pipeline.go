// Copyright © 2024 Timothy E. Peoples

// Package pipeline provides logic for processing a pipeline of uint32
// messages through a coordinated concurrency model. A Pipeline is made up of
// one or more stages, each executing a fixed set of concurrent coroutines
// coordinated through this module's [coro] runtime and carrying data over
// this module's [corobus] channels. Each stage tracks its own worker
// accounting, exposed through Metrics.
package pipeline

import (
	"context"
	"sync"

	"github.com/go-sage/corobus/pkg/corobus"
)

type (
	Pipeline struct {
		impl    Interface
		bus     *corobus.Bus
		stages  []*stage
		extra   []func(ctx context.Context) error
		byname  map[string]int
		started bool

		mutex
	}

	// A type alias to hide an otherwise exported name
	// for the embedded Mutex field.
	mutex = sync.Mutex
)

// Interface defines methods that should be implemented by types written to
// provide the data source and sink for a given Pipeline.
type Interface interface {
	// Feed acts as the data source for a Pipeline by sending messages into
	// the bus channel identified by in. The Pipeline closes that channel as
	// soon as this method returns.
	//
	// NOTE: the implementor should not close this channel itself.
	Feed(ctx context.Context, bus *corobus.Bus, in int) error

	// Collect acts as the data sink for a Pipeline by receiving messages
	// from the bus channel identified by out until the Pipeline closes it.
	Collect(ctx context.Context, bus *corobus.Bus, out int) error
}

// New creates and returns a new Pipeline using the provided Interface. All
// of the receiver's stage and boundary channels are opened on bus as the
// Pipeline runs.
func New(impl Interface, bus *corobus.Bus) *Pipeline {
	return &Pipeline{
		impl:   impl,
		bus:    bus,
		byname: make(map[string]int),
	}
}

// A StageFunc is the function called to process each message flowing
// through a stage registered using the (*Pipeline).Add method.
type StageFunc func(ctx context.Context, input uint32) (uint32, error)

// Add registers a named Pipeline stage that processes messages with sfunc
// over a fixed pool of capacity coroutines. The given name must be unique
// among all stages for this Pipeline. Add may be called multiple times, to
// register multiple stages, and data flows through each stage in the order
// they're registered. Run fails if no stages have been registered.
//
// Once the receiver has been started (by calling Run) no more stages may be
// registered. Add returns ErrIsStarted if called after Run. ErrNameConflict
// is returned if Add is called using a previously registered name.
// Otherwise, the new stage is registered and a nil error is returned.
//
// The name parameter may later be used with Resize or Metrics.
func (p *Pipeline) Add(name string, capacity int, sfunc StageFunc) error {
	if p == nil {
		return ErrNilReceiver
	}

	p.Lock()
	defer p.Unlock()

	if p.started {
		return ErrIsStarted
	}

	if _, ok := p.byname[name]; ok {
		return ErrNameConflict
	}

	idx := len(p.stages)
	p.stages = append(p.stages, newStage(name, capacity, sfunc))

	p.byname[name] = idx

	return nil
}

// Resize updates the reported capacity of the named stage and returns its
// previous value. It affects StageMetrics reporting for that stage; the
// number of coroutines actually processing the stage is fixed at Run time
// to the capacity given to Add (see the stage type's doc comment).
// If name is not a registered stage name, zero and ErrNameUnknown are
// returned.
func (p *Pipeline) Resize(name string, newcap int) (int, error) {
	if p == nil {
		return 0, ErrNilReceiver
	}

	p.Lock()
	defer p.Unlock()

	ndx, ok := p.byname[name]
	if !ok {
		return 0, ErrNameUnknown
	}

	if ndx < 0 || ndx >= len(p.stages) {
		return 0, ErrCorrupted
	}

	return p.stages[ndx].resize(newcap), nil
}

// Metrics returns a point-in-time StageMetrics snapshot for the named stage.
func (p *Pipeline) Metrics(name string) (StageMetrics, error) {
	if p == nil {
		return StageMetrics{}, ErrNilReceiver
	}

	p.Lock()
	defer p.Unlock()

	ndx, ok := p.byname[name]
	if !ok {
		return StageMetrics{}, ErrNameUnknown
	}

	return p.stages[ndx].metrics(), nil
}

// Go adds fn to the set of functions run as independent coroutines alongside
// the Pipeline's own Feed/stage/Collect coroutines when Run is called. An
// error returned by fn fails the whole Pipeline, just as a stage error does.
func (p *Pipeline) Go(fn func(ctx context.Context) error) {
	p.extra = append(p.extra, fn)
}
