package collectionutils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssociate(t *testing.T) {
	type user struct {
		id   int64
		name string
	}

	users := []user{{1, "alice"}, {2, "bob"}}

	byId := Associate(users, func(u user) (int64, string) {
		return u.id, u.name
	})

	assert.Equal(t, map[int64]string{1: "alice", 2: "bob"}, byId)
}

func TestGroupBy(t *testing.T) {
	words := []string{"ant", "bee", "apple", "bear"}

	byFirstLetter := GroupBy(words, func(w string) byte {
		return w[0]
	})

	assert.Equal(t, []string{"ant", "apple"}, byFirstLetter['a'])
	assert.Equal(t, []string{"bee", "bear"}, byFirstLetter['b'])
}

func TestGetOrDefault(t *testing.T) {
	m := map[string]int{"present": 42}

	assert.Equal(t, 42, GetOrDefault(m, "present", 0))
	assert.Equal(t, 7, GetOrDefault(m, "missing", 7))
}

func TestSafeMapStoreGetDelete(t *testing.T) {
	m := New[string, int]()

	_, exists := m.Get("missing")
	assert.False(t, exists)

	m.Store("key", 1)
	value, exists := m.Get("key")
	assert.True(t, exists)
	assert.Equal(t, 1, value)

	m.Delete("key")
	_, exists = m.Get("key")
	assert.False(t, exists)
}

func TestSafeMapGetOrStore(t *testing.T) {
	m := New[string, int]()

	calls := 0
	factory := func() int {
		calls++
		return 10
	}

	assert.Equal(t, 10, m.GetOrStore("key", factory))
	assert.Equal(t, 10, m.GetOrStore("key", factory))
	assert.Equal(t, 1, calls)
}

func TestSafeMapConcurrentAccess(t *testing.T) {
	m := New[int, int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m.Store(n, n)
			m.GetOrStore(n%10, func() int { return n })
			m.Get(n)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		value, exists := m.Get(i)
		assert.True(t, exists)
		assert.Equal(t, i, value)
	}
}
