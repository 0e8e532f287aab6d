package remoteassets

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncState(t *testing.T) {
	s := NewSyncState()
	assert.False(t, s.Contains(fooPath))

	s.Add(fooPath)
	s.Add(fooPath)
	assert.True(t, s.Contains(fooPath))
	assert.Equal(t, 1, s.Len())

	s.Add(barPath)
	assert.Equal(t, []string{barPath, fooPath}, s.Paths())

	s.Remove(fooPath)
	assert.False(t, s.Contains(fooPath))
	assert.True(t, s.Contains(barPath))

	s.Remove("/content/dam/never-added")
	assert.Equal(t, 1, s.Len())
}

func TestSyncState_ConcurrentPaths(t *testing.T) {
	s := NewSyncState()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := fmt.Sprintf("/content/dam/site/%d.png", i)
			s.Add(p)
			assert.True(t, s.Contains(p))
			s.Remove(p)
			assert.False(t, s.Contains(p))
		}(i)
	}
	wg.Wait()
	assert.Zero(t, s.Len())
}

// Contains followed by Add is not atomic. Every caller that sees the path as absent
// starts a sync, so at least one and possibly several callers win.
func TestSyncState_CheckThenAddRace(t *testing.T) {
	s := NewSyncState()

	const callers = 32
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		winners atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if !s.Contains(fooPath) {
				s.Add(fooPath)
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.GreaterOrEqual(t, winners.Load(), int32(1))
	assert.LessOrEqual(t, winners.Load(), int32(callers))
	assert.True(t, s.Contains(fooPath))
	assert.Equal(t, 1, s.Len())
}
