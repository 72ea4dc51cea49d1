package library

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// Scheduler runs units of blocking work (directory reads, descriptor loads).
// Every implementation must give the same results; only parallelism differs.
type Scheduler interface {
	NewGroup() Group
}

// Group collects units of work. Go may be called from inside a running unit.
// Wait returns the first error once every unit has finished.
type Group interface {
	Go(fn func() error)
	Wait() error
}

// Inline runs each unit on the calling goroutine.
type Inline struct{}

func (Inline) NewGroup() Group { return &inlineGroup{} }

type inlineGroup struct {
	err error
}

func (g *inlineGroup) Go(fn func() error) {
	if err := fn(); err != nil && g.err == nil {
		g.err = err
	}
}

func (g *inlineGroup) Wait() error { return g.err }

// Pooled runs units on at most Workers goroutines shared by all groups. When
// every slot is busy the unit runs inline on the submitting goroutine, so a
// unit that fans out further can never wait on a slot it is holding.
type Pooled struct {
	slots chan struct{}
}

// NewPooled returns a pooled scheduler. workers < 1 is treated as 1.
func NewPooled(workers int) *Pooled {
	if workers < 1 {
		workers = 1
	}
	return &Pooled{slots: make(chan struct{}, workers)}
}

// Workers returns the pool bound.
func (p *Pooled) Workers() int { return cap(p.slots) }

func (p *Pooled) NewGroup() Group { return &pooledGroup{pool: p} }

type pooledGroup struct {
	pool *Pooled
	eg   errgroup.Group

	mu  sync.Mutex
	err error
}

func (g *pooledGroup) Go(fn func() error) {
	select {
	case g.pool.slots <- struct{}{}:
		g.eg.Go(func() error {
			defer func() { <-g.pool.slots }()
			return fn()
		})
	default:
		if err := fn(); err != nil {
			g.mu.Lock()
			if g.err == nil {
				g.err = err
			}
			g.mu.Unlock()
		}
	}
}

func (g *pooledGroup) Wait() error {
	if err := g.eg.Wait(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}
