package collectionutils

import "sync"

type SafeMap[K comparable, V any] struct {
	data  map[K]V
	mutex sync.RWMutex
}

func New[K comparable, V any]() *SafeMap[K, V] {
	return &SafeMap[K, V]{
		data: make(map[K]V),
	}
}

func (safeMap *SafeMap[K, V]) Store(newKey K, newValue V) {
	safeMap.mutex.Lock()
	defer safeMap.mutex.Unlock()
	safeMap.data[newKey] = newValue
}

func (safeMap *SafeMap[K, V]) Get(key K) (V, bool) {
	safeMap.mutex.RLock()
	defer safeMap.mutex.RUnlock()
	value, exists := safeMap.data[key]

	return value, exists
}

// GetOrStore returns the existing value for key if present, otherwise it
// stores the value produced by newValue and returns it.
func (safeMap *SafeMap[K, V]) GetOrStore(key K, newValue func() V) V {
	safeMap.mutex.Lock()
	defer safeMap.mutex.Unlock()
	if value, exists := safeMap.data[key]; exists {
		return value
	}
	value := newValue()
	safeMap.data[key] = value
	return value
}

func (safeMap *SafeMap[K, V]) Delete(key K) {
	safeMap.mutex.Lock()
	defer safeMap.mutex.Unlock()
	delete(safeMap.data, key)
}
