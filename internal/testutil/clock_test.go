package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock_StartsAtEpoch(t *testing.T) {
	clock := NewManualClock()
	assert.Equal(t, Epoch, clock.Now())
}

func TestManualClock_Advance(t *testing.T) {
	clock := NewManualClock()

	assert.Equal(t, Epoch.Add(time.Minute), clock.Advance(time.Minute))
	assert.Equal(t, Epoch.Add(time.Minute), clock.Now())

	// Negative durations never move the clock backwards
	clock.Advance(-time.Hour)
	assert.Equal(t, Epoch.Add(time.Minute), clock.Now())
}

func TestManualClock_Reset(t *testing.T) {
	clock := NewManualClock()
	clock.Advance(time.Hour)

	clock.Reset()
	assert.Equal(t, Epoch, clock.Now())
}

func TestManualClock_ThreadSafe(t *testing.T) {
	clock := NewManualClock()
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(numGoroutines*time.Second), clock.Now())
}

func TestFixtures_SchemaMatchesTypes(t *testing.T) {
	info := Schema()
	assert.NoError(t, info.Validate())

	for _, name := range []string{"Person", "Movie", "Letter", "UserAccount"} {
		_, ok := info.Lookup(name)
		assert.True(t, ok, "missing %s", name)
	}
}
