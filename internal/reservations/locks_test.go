package reservations

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableLocksSerializeSameTable(t *testing.T) {
	locks := newTableLocks()

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.lock(7)
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, locks.size())
}

func TestTableLocksIndependentTables(t *testing.T) {
	locks := newTableLocks()

	releaseA := locks.lock(1)
	done := make(chan struct{})
	go func() {
		release := locks.lock(2)
		release()
		close(done)
	}()
	<-done
	assert.Equal(t, 1, locks.size())
	releaseA()
	assert.Equal(t, 0, locks.size())
}

func TestFillGuardSkipsFillAfterInvalidate(t *testing.T) {
	g := newFillGuard()
	var stored, dropped int

	gen := g.generation(1)
	assert.True(t, g.fill(1, gen, func() { stored++ }))

	gen = g.generation(1)
	g.invalidate(1, func() { dropped++ })
	assert.False(t, g.fill(1, gen, func() { stored++ }))

	assert.True(t, g.fill(2, g.generation(2), func() { stored++ }))
	assert.Equal(t, 2, stored)
	assert.Equal(t, 1, dropped)
}
