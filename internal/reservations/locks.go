package reservations

import "sync"

// tableLocks hands out one mutex per table. Entries are dropped once no
// caller holds or waits on them.
type tableLocks struct {
	mu    sync.Mutex
	locks map[uint]*tableLock
}

type tableLock struct {
	mu   sync.Mutex
	refs int
}

func newTableLocks() *tableLocks {
	return &tableLocks{locks: make(map[uint]*tableLock)}
}

// lock blocks until the caller owns tableID and returns the release func
func (l *tableLocks) lock(tableID uint) func() {
	l.mu.Lock()
	tl, ok := l.locks[tableID]
	if !ok {
		tl = &tableLock{}
		l.locks[tableID] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.mu.Lock()
	return func() {
		tl.mu.Unlock()
		l.mu.Lock()
		tl.refs--
		if tl.refs == 0 {
			delete(l.locks, tableID)
		}
		l.mu.Unlock()
	}
}

func (l *tableLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// fillGuard stops an availability read from caching numbers that a commit
// has already made stale. Every invalidation bumps the event's generation;
// a fill only lands if the generation it started under is still current.
type fillGuard struct {
	mu   sync.Mutex
	gens map[uint]uint64
}

func newFillGuard() *fillGuard {
	return &fillGuard{gens: make(map[uint]uint64)}
}

func (g *fillGuard) generation(eventID uint) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gens[eventID]
}

// invalidate bumps the generation and runs drop while no fill can land
func (g *fillGuard) invalidate(eventID uint, drop func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gens[eventID]++
	drop()
}

// fill runs store only if no invalidation happened since gen was read
func (g *fillGuard) fill(eventID uint, gen uint64, store func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gens[eventID] != gen {
		return false
	}
	store()
	return true
}
