package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_FirstGenerationIsOne(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(1), c.Current())
}

func TestClock_ResumesFromJournal(t *testing.T) {
	c := NewClockAt(41)
	assert.Equal(t, int64(41), c.Current())
	assert.Equal(t, int64(42), c.Next())
}

func TestClock_ConcurrentGenerationsUnique(t *testing.T) {
	c := NewClock()
	const workers, calls = 16, 200

	var wg sync.WaitGroup
	gens := make(chan int64, workers*calls)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				gens <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(gens)

	seen := make(map[int64]bool)
	for g := range gens {
		assert.False(t, seen[g], "generation %d handed out twice", g)
		seen[g] = true
	}
	assert.Len(t, seen, workers*calls)
	assert.Equal(t, int64(workers*calls), c.Current())
}
