package livecache

import "sync"

// Coalescer runs fn in the background with at most one run in flight.
// Triggers that arrive during a run collapse into a single trailing run.
type Coalescer struct {
	fn func()

	mu      sync.Mutex
	running bool
	pending bool
	wg      sync.WaitGroup
}

func NewCoalescer(fn func()) *Coalescer {
	return &Coalescer{fn: fn}
}

// Trigger requests a run and returns immediately.
func (c *Coalescer) Trigger() {
	c.mu.Lock()
	if c.running {
		c.pending = true
		c.mu.Unlock()
		return
	}
	c.running = true
	c.wg.Add(1)
	c.mu.Unlock()

	go c.loop()
}

func (c *Coalescer) loop() {
	defer c.wg.Done()
	for {
		c.fn()

		c.mu.Lock()
		if !c.pending {
			c.running = false
			c.mu.Unlock()
			return
		}
		c.pending = false
		c.mu.Unlock()
	}
}

// Wait blocks until no run is in flight. Callers stop triggering first.
func (c *Coalescer) Wait() {
	c.wg.Wait()
}

// Sequencer runs fn once per Trigger, one run at a time, in the background.
// Triggers are counted rather than buffered, so a burst never blocks the
// caller and none is lost.
type Sequencer struct {
	fn func()

	mu      sync.Mutex
	running bool
	queued  int
	wg      sync.WaitGroup
}

func NewSequencer(fn func()) *Sequencer {
	return &Sequencer{fn: fn}
}

// Trigger queues one run and returns immediately.
func (s *Sequencer) Trigger() {
	s.mu.Lock()
	s.queued++
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop()
}

func (s *Sequencer) loop() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if s.queued == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		s.queued--
		s.mu.Unlock()

		s.fn()
	}
}

// Queued returns the runs not yet started.
func (s *Sequencer) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queued
}

// Wait blocks until every queued run has returned. Callers stop triggering
// first.
func (s *Sequencer) Wait() {
	s.wg.Wait()
}
