package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRU_GetSet(t *testing.T) {
	c := NewLRU[[]float32](10, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("q", []float32{1, 0}, 0)
	v, ok := c.Get("q")
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 0}, v)

	c.Set("q", []float32{0, 1}, 0)
	v, _ = c.Get("q")
	assert.Equal(t, []float32{0, 1}, v)
	assert.Equal(t, 1, c.Size())

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	_, _ = c.Get("a") // b becomes the oldest
	c.Set("c", 3, 0)

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	_, okC := c.Get("c")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
}

func TestLRU_Expiry(t *testing.T) {
	c := NewLRU[string](10, time.Minute)
	c.Set("short", "x", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestLRU_Clear(t *testing.T) {
	c := NewLRU[int](0, 0)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprint(i), i, 0)
	}
	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU[int](50, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprint(i % 20)
			c.Set(key, i, 0)
			c.Get(key)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Size(), 50)
}
