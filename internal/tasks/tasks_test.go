package tasks

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ProgressNeverDecreases(t *testing.T) {
	store := NewMemoryStore()
	store.Create(Task{ID: "t1"})

	store.Update("t1", StatusProcessing, 30, "transcribing")
	store.Update("t1", StatusProcessing, 10, "stale update")

	task, ok := store.Get("t1")
	require.True(t, ok)
	require.Equal(t, 30, task.Progress)
	require.Equal(t, "stale update", task.Message)
}

func TestMemoryStore_TerminalIsLatched(t *testing.T) {
	store := NewMemoryStore()
	store.Create(Task{ID: "t1"})

	store.Fail("t1", "boom")
	store.Update("t1", StatusProcessing, 50, "late pipeline write")
	store.Complete("t1", nil, "done")

	task, ok := store.Get("t1")
	require.True(t, ok)
	require.Equal(t, StatusFailed, task.Status)
	require.Equal(t, "boom", task.Message)
}

func TestMemoryStore_CompleteSetsFullProgress(t *testing.T) {
	store := NewMemoryStore()
	store.Create(Task{ID: "t1"})

	store.Update("t1", StatusProcessing, 70, "scoring")
	store.Complete("t1", map[string]string{"dialog_id": "d1"}, "analysis complete")

	task, ok := store.Get("t1")
	require.True(t, ok)
	require.Equal(t, StatusCompleted, task.Status)
	require.Equal(t, 100, task.Progress)
	require.NotNil(t, task.Result)
}

func TestMemoryStore_CreateDefaults(t *testing.T) {
	store := NewMemoryStore()
	store.Create(Task{ID: "t1"})

	task, ok := store.Get("t1")
	require.True(t, ok)
	require.Equal(t, StatusPending, task.Status)
	require.False(t, task.CreatedAt.IsZero())
}

func TestMemoryStore_UpdateUnknownTask(t *testing.T) {
	store := NewMemoryStore()
	store.Update("missing", StatusProcessing, 10, "noop")

	_, ok := store.Get("missing")
	require.False(t, ok)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	store.Create(Task{ID: "t1"})
	store.Delete("t1")

	_, ok := store.Get("t1")
	require.False(t, ok)
}
