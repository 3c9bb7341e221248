package store

import (
	"sort"
	"sync"

	"github.com/unblockhq/unblock/models"
	"github.com/unblockhq/unblock/types"
)

// MemoryTaskStore implements TaskStore with an in-process map.
// State lives for the process lifetime; cross-process persistence is
// deliberately out of scope.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]models.Task
}

// NewMemoryTaskStore creates an empty in-memory task store.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[string]models.Task)}
}

func (s *MemoryTaskStore) Upsert(task models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
	return nil
}

func (s *MemoryTaskStore) Get(id string) (models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return models.Task{}, types.NewTaskError(types.ErrNotFound, id, "task not found")
	}
	return task, nil
}

func (s *MemoryTaskStore) List(filterFn func(models.Task) bool) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if filterFn == nil || filterFn(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAtMs != out[j].CreatedAtMs {
			return out[i].CreatedAtMs > out[j].CreatedAtMs
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryTaskStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks), nil
}
