package sync

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardForIsStable(t *testing.T) {
	assert.Equal(t, 0, shardFor(""))
	assert.Equal(t, shardFor("user-1"), shardFor("user-1"))
	for _, k := range []string{"a", "user-1", "5d8deda2-4189-45f7-8fbf-d81981e460b6"} {
		s := shardFor(k)
		assert.GreaterOrEqual(t, s, 0)
		assert.Less(t, s, shardCount)
	}
}

func TestDoSerializesSameKey(t *testing.T) {
	m := NewShardedMutex()
	counter := 0

	var wg sync.WaitGroup
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Do("user-1", func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, counter)
}

func TestDoReturnsFnErrorAndReleases(t *testing.T) {
	m := NewShardedMutex()
	boom := errors.New("boom")

	assert.ErrorIs(t, m.Do("k", func() error { return boom }), boom)
	// The lock was released, so a second Do must not deadlock.
	assert.NoError(t, m.Do("k", func() error { return nil }))
}
