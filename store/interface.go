// Package store holds the task snapshot store consumed by the lifecycle.
package store

import "github.com/unblockhq/unblock/models"

// TaskStore defines the interface for task snapshot persistence.
// The lifecycle service is the only writer; a snapshot is replaced
// wholesale on every committed transition.
type TaskStore interface {
	// Upsert stores the given task snapshot, replacing any previous
	// snapshot with the same id.
	Upsert(task models.Task) error

	// Get retrieves a task by id. It returns types.ErrNotFound (wrapped)
	// when no task with that id exists.
	Get(id string) (models.Task, error)

	// List returns tasks sorted newest-first by creation time.
	// If filterFn is nil, all tasks are returned.
	List(filterFn func(models.Task) bool) ([]models.Task, error)

	// Count returns the number of stored tasks.
	Count() (int, error)
}
