package kvstore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func constant(v int) func() int {
	return func() int { return v }
}

func TestGetOrCreate(t *testing.T) {
	s := New[string, *int]()
	created := 0
	create := func() *int {
		created++
		v := created
		return &v
	}

	first := s.GetOrCreate("k", create)
	second := s.GetOrCreate("k", create)

	assert.Same(t, first, second)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, s.Len())
}

func TestExpire(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := New[string, int]()
	s.now = func() time.Time { return now }

	s.GetOrCreate("old", constant(1))
	now = now.Add(time.Hour)
	s.GetOrCreate("new", constant(2))
	now = now.Add(10 * time.Minute)

	assert.Equal(t, 1, s.Expire(30*time.Minute))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 3, s.GetOrCreate("old", constant(3)))
	assert.Equal(t, 2, s.GetOrCreate("new", constant(4)))
}

func TestGetOrCreate_RefreshesUse(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := New[string, int]()
	s.now = func() time.Time { return now }

	s.GetOrCreate("k", constant(1))
	now = now.Add(time.Hour)
	s.GetOrCreate("k", constant(2))
	now = now.Add(time.Minute)

	assert.Equal(t, 0, s.Expire(30*time.Minute))
	assert.Equal(t, 1, s.GetOrCreate("k", constant(3)))
}

func TestConcurrentAccess(t *testing.T) {
	s := New[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.GetOrCreate(i%5, constant(i))
			s.Expire(time.Hour)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, s.Len())
}
