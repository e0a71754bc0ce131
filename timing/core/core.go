// Package core provides the cycle-accurate CPU core model. It wraps the
// pipeline controller and the split caches behind a simple run interface.
package core

import (
	"github.com/sarchlab/rv5sim/timing/cache"
	"github.com/sarchlab/rv5sim/timing/pipeline"
)

// Option is a functional option for configuring the Core.
type Option func(*Core)

// WithOutputPrefix enables the per-cycle pipe state trace and names the
// output files.
func WithOutputPrefix(prefix string) Option {
	return func(c *Core) {
		c.outputPrefix = prefix
	}
}

// WithEntryPC sets the initial fetch address.
func WithEntryPC(pc uint64) Option {
	return func(c *Core) {
		c.entryPC = pc
	}
}

// Core wraps a five-stage pipeline and its caches.
type Core struct {
	pipeline *pipeline.Pipeline
	icache   *cache.Cache
	dcache   *cache.Cache
	tracer   *pipeline.Tracer

	outputPrefix string
	entryPC      uint64
}

// NewCore creates a core over the given functional simulator and cache
// configurations.
func NewCore(
	sim pipeline.Simulator,
	iCacheConfig, dCacheConfig cache.Config,
	opts ...Option,
) (*Core, error) {
	c := &Core{}
	for _, opt := range opts {
		opt(c)
	}

	icache, err := cache.New(iCacheConfig, cache.KindICache)
	if err != nil {
		return nil, err
	}
	dcache, err := cache.New(dCacheConfig, cache.KindDCache)
	if err != nil {
		return nil, err
	}
	c.icache = icache
	c.dcache = dcache

	pipeOpts := []pipeline.Option{pipeline.WithEntryPC(c.entryPC)}
	if c.outputPrefix != "" {
		tracer, err := pipeline.NewTracer(c.outputPrefix)
		if err != nil {
			return nil, err
		}
		c.tracer = tracer
		pipeOpts = append(pipeOpts, pipeline.WithTracer(tracer))
	}

	c.pipeline = pipeline.NewPipeline(sim, icache, dcache, pipeOpts...)

	return c, nil
}

// Pipeline returns the underlying pipeline.
func (c *Core) Pipeline() *pipeline.Pipeline {
	return c.pipeline
}

// Tick executes one cycle.
func (c *Core) Tick() pipeline.Status {
	return c.pipeline.Tick()
}

// RunCycles executes up to cycles ticks, or until HALT when cycles is 0.
func (c *Core) RunCycles(cycles uint64) pipeline.Status {
	return c.pipeline.RunCycles(cycles)
}

// RunTillHalt executes single cycles until the run halts or errors.
func (c *Core) RunTillHalt() pipeline.Status {
	return c.pipeline.RunTillHalt()
}

// Halted reports whether the halt marker has retired.
func (c *Core) Halted() bool {
	return c.pipeline.Halted()
}

// Stats returns the run counters.
func (c *Core) Stats() pipeline.Stats {
	return c.pipeline.Stats()
}

// Finalize writes the end-of-run statistics file and closes the trace.
// It is a no-op when no output prefix was configured.
func (c *Core) Finalize() error {
	if c.outputPrefix == "" {
		return nil
	}
	if err := pipeline.WriteSimStats(c.pipeline.Stats(), c.outputPrefix); err != nil {
		return err
	}
	if c.tracer != nil {
		if err := c.tracer.Close(); err != nil {
			return err
		}
		c.tracer = nil
	}
	return nil
}

// DumpCaches writes the cache state files.
func (c *Core) DumpCaches() error {
	if err := c.icache.Dump(c.outputPrefix); err != nil {
		return err
	}
	return c.dcache.Dump(c.outputPrefix)
}

// Reset clears all core state.
func (c *Core) Reset() {
	c.pipeline.Reset()
	c.pipeline.SetPC(c.entryPC)
}
