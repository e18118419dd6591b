package model

import (
	"fmt"
	"sync"
)

// Library holds the functional models known to the application.
// It is safe for concurrent use.
type Library struct {
	mu      sync.RWMutex
	models  []*FunctionalModel
	nextKey int
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{nextKey: 1}
}

// Add stores m under the next free key unless a structurally equal model
// already exists, in which case the existing model is returned and added
// is false.
func (l *Library) Add(m *FunctionalModel) (stored *FunctionalModel, added bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing := l.findLocked(m); existing != nil {
		return existing, false
	}
	m.Key = l.nextKey
	l.nextKey++
	l.models = append(l.models, m)
	return m, true
}

// Find returns the stored model structurally equal to m, or nil.
func (l *Library) Find(m *FunctionalModel) *FunctionalModel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.findLocked(m)
}

func (l *Library) findLocked(m *FunctionalModel) *FunctionalModel {
	for _, existing := range l.models {
		if existing.Equal(m) {
			return existing
		}
	}
	return nil
}

// Get returns the model stored under key.
func (l *Library) Get(key int) (*FunctionalModel, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, m := range l.models {
		if m.Key == key {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: key %d", ErrModelNotFound, key)
}

// Remove deletes the model stored under key.
func (l *Library) Remove(key int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, m := range l.models {
		if m.Key == key {
			l.models = append(l.models[:i], l.models[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: key %d", ErrModelNotFound, key)
}

// Models returns the stored models in insertion order.
func (l *Library) Models() []*FunctionalModel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*FunctionalModel(nil), l.models...)
}

// Len returns the number of stored models.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.models)
}
