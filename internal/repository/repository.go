package repository

import (
	"context"
	"sync"
)

// Entity is a base interface for all entities.
type Entity interface {
	GetID() string
}

// InMemoryRepository is a concurrency-safe in-memory store keyed by entity ID.
type InMemoryRepository[T Entity] struct {
	mu   sync.RWMutex
	data map[string]T
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository[T Entity]() *InMemoryRepository[T] {
	return &InMemoryRepository[T]{
		data: make(map[string]T),
	}
}

// GetByID retrieves an entity by ID.
func (r *InMemoryRepository[T]) GetByID(ctx context.Context, id string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	if entity, ok := r.data[id]; ok {
		return entity, nil
	}
	return zero, ErrNotFound
}

// Find returns the first entity matching fn.
func (r *InMemoryRepository[T]) Find(ctx context.Context, fn func(T) bool) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	for _, entity := range r.data {
		if fn(entity) {
			return entity, nil
		}
	}
	return zero, ErrNotFound
}

// CreateUnless stores entity unless an existing entity matches conflict.
// The check and the insert happen under one lock.
func (r *InMemoryRepository[T]) CreateUnless(ctx context.Context, entity T, conflict func(T) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[entity.GetID()]; ok {
		return ErrAlreadyExists
	}
	for _, existing := range r.data {
		if conflict != nil && conflict(existing) {
			return ErrAlreadyExists
		}
	}
	r.data[entity.GetID()] = entity
	return nil
}

// Count returns the number of stored entities.
func (r *InMemoryRepository[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// Common repository errors
var (
	ErrNotFound      = &RepositoryError{Code: "NOT_FOUND", Message: "entity not found"}
	ErrAlreadyExists = &RepositoryError{Code: "ALREADY_EXISTS", Message: "entity already exists"}
)

// RepositoryError represents a repository error.
type RepositoryError struct {
	Code    string
	Message string
}

func (e *RepositoryError) Error() string {
	return e.Code + ": " + e.Message
}
