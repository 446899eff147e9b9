package client

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer(t *testing.T) {
	t.Run("coalesces bursts", func(t *testing.T) {
		d := NewDebouncer(20 * time.Millisecond)
		var calls atomic.Int32
		var last atomic.Int32

		for i := 1; i <= 10; i++ {
			v := int32(i)
			d.Schedule("k", func() {
				calls.Add(1)
				last.Store(v)
			})
		}
		assert.True(t, d.Pending("k"))

		require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		assert.Never(t, func() bool { return calls.Load() > 1 }, 60*time.Millisecond, 10*time.Millisecond)
		assert.EqualValues(t, 10, last.Load())
		assert.False(t, d.Pending("k"))
	})

	t.Run("keys are independent", func(t *testing.T) {
		d := NewDebouncer(10 * time.Millisecond)
		var mu sync.Mutex
		ran := map[string]int{}
		for _, key := range []string{"a", "b", "a"} {
			d.Schedule(key, func() {
				mu.Lock()
				defer mu.Unlock()
				ran[key]++
			})
		}

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return ran["a"] == 1 && ran["b"] == 1
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("cancel", func(t *testing.T) {
		d := NewDebouncer(10 * time.Millisecond)
		var calls atomic.Int32
		d.Schedule("k", func() { calls.Add(1) })
		d.Cancel("k")

		assert.False(t, d.Pending("k"))
		assert.Never(t, func() bool { return calls.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	})

	t.Run("flush runs now", func(t *testing.T) {
		d := NewDebouncer(time.Hour)
		calls := 0
		d.Schedule("k", func() { calls++ })

		d.Flush("k")
		assert.Equal(t, 1, calls)
		d.Flush("k")
		assert.Equal(t, 1, calls)
	})

	t.Run("stale timer does not run", func(t *testing.T) {
		d := NewDebouncer(time.Hour)
		var calls atomic.Int32
		d.Schedule("k", func() { calls.Add(1) })

		d.mu.Lock()
		staleGen := d.pending["k"].gen
		d.mu.Unlock()

		d.Schedule("k", func() { calls.Add(10) })
		d.fire("k", staleGen)
		assert.Zero(t, calls.Load())
		assert.True(t, d.Pending("k"))

		d.Flush("k")
		assert.EqualValues(t, 10, calls.Load())
	})

	t.Run("stop flushes and refuses new work", func(t *testing.T) {
		d := NewDebouncer(time.Hour)
		calls := 0
		d.Schedule("a", func() { calls++ })
		d.Schedule("b", func() { calls++ })

		d.Stop()
		assert.Equal(t, 2, calls)

		d.Schedule("c", func() { calls++ })
		assert.False(t, d.Pending("c"))
	})
}
