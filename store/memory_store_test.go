package store

import (
	"errors"
	"testing"

	"github.com/unblockhq/unblock/models"
	"github.com/unblockhq/unblock/types"
)

func TestUpsertAndGet(t *testing.T) {
	s := NewMemoryTaskStore()
	task := models.Task{ID: "t1", Question: "q", Status: models.StatusOpen, CreatedAtMs: 1}

	if err := s.Upsert(task); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := s.Get("t1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Question != "q" {
		t.Errorf("got = %+v", got)
	}

	// Upsert replaces.
	task.Status = models.StatusClaimed
	_ = s.Upsert(task)
	got, _ = s.Get("t1")
	if got.Status != models.StatusClaimed {
		t.Errorf("status = %s after upsert, want CLAIMED", got.Status)
	}
	if n, _ := s.Count(); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestGetMissing(t *testing.T) {
	s := NewMemoryTaskStore()
	if _, err := s.Get("nope"); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := NewMemoryTaskStore()
	_ = s.Upsert(models.Task{ID: "a", CreatedAtMs: 1, Status: models.StatusOpen})
	_ = s.Upsert(models.Task{ID: "b", CreatedAtMs: 3, Status: models.StatusOpen})
	_ = s.Upsert(models.Task{ID: "c", CreatedAtMs: 2, Status: models.StatusClaimed})

	all, err := s.List(nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != "b" || all[1].ID != "c" || all[2].ID != "a" {
		t.Errorf("order = %v", ids(all))
	}

	open, _ := s.List(func(t models.Task) bool { return t.Status == models.StatusOpen })
	if len(open) != 2 {
		t.Errorf("filtered = %v", ids(open))
	}
}

func TestListTiesBreakByID(t *testing.T) {
	s := NewMemoryTaskStore()
	_ = s.Upsert(models.Task{ID: "z", CreatedAtMs: 1})
	_ = s.Upsert(models.Task{ID: "a", CreatedAtMs: 1})

	all, _ := s.List(nil)
	if all[0].ID != "a" || all[1].ID != "z" {
		t.Errorf("tie order = %v", ids(all))
	}
}

func ids(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
