package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/texforge/texforge/internal/domain"
	"github.com/texforge/texforge/pkg/logger"
)

func newTestRegistry() *Registry {
	return New(logger.New())
}

func TestInsertAndGet(t *testing.T) {
	r := newTestRegistry()
	job := domain.NewJob("job-1", "paper.zip", domain.Options{})

	require.NoError(t, r.Insert(job))

	got, err := r.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", got.ID)
}

func TestInsertDuplicateFails(t *testing.T) {
	r := newTestRegistry()
	job := domain.NewJob("job-1", "paper.zip", domain.Options{})
	require.NoError(t, r.Insert(job))
	assert.Error(t, r.Insert(job))
}

func TestGetReturnsDeepCopy(t *testing.T) {
	r := newTestRegistry()
	job := domain.NewJob("job-1", "paper.zip", domain.Options{})
	require.NoError(t, r.Insert(job))

	snapshot, err := r.Get("job-1")
	require.NoError(t, err)
	snapshot.Status = domain.StatusCompleted

	live, err := r.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, live.Status, "mutating a Get() result must not affect the live record")
}

func TestMutateChangesLiveRecord(t *testing.T) {
	r := newTestRegistry()
	job := domain.NewJob("job-1", "paper.zip", domain.Options{})
	require.NoError(t, r.Insert(job))

	require.NoError(t, r.Mutate("job-1", func(j *domain.Job) {
		j.Status = domain.StatusRunning
	}))

	got, err := r.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, got.Status)
}

func TestInsertIfUnderCapacity(t *testing.T) {
	r := newTestRegistry()
	for i := 0; i < 3; i++ {
		job := domain.NewJob(string(rune('a'+i)), "paper.zip", domain.Options{})
		require.NoError(t, r.InsertIfUnderCapacity(job, 3))
	}

	overflow := domain.NewJob("overflow", "paper.zip", domain.Options{})
	err := r.InsertIfUnderCapacity(overflow, 3)
	assert.Error(t, err, "a fourth job should be rejected at capacity 3")
	assert.Equal(t, 3, r.ActiveCount())
}

func TestInsertIfUnderCapacityConcurrentNeverExceedsMax(t *testing.T) {
	r := newTestRegistry()
	const max = 5
	const attempts = 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			job := domain.NewJob(string(rune('A'+i)), "paper.zip", domain.Options{})
			if err := r.InsertIfUnderCapacity(job, max); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, max, admitted)
	assert.Equal(t, max, r.ActiveCount())
}

func TestTerminalBefore(t *testing.T) {
	r := newTestRegistry()
	job := domain.NewJob("job-1", "paper.zip", domain.Options{})
	require.NoError(t, r.Insert(job))
	require.NoError(t, r.Mutate("job-1", func(j *domain.Job) {
		j.Status = domain.StatusCompleted
	}))

	eligible := r.TerminalBefore(func(j *domain.Job) bool { return true })
	require.Len(t, eligible, 1)
	assert.Equal(t, "job-1", eligible[0].ID)

	none := r.TerminalBefore(func(j *domain.Job) bool { return false })
	assert.Empty(t, none)
}

func TestRemove(t *testing.T) {
	r := newTestRegistry()
	job := domain.NewJob("job-1", "paper.zip", domain.Options{})
	require.NoError(t, r.Insert(job))
	require.NoError(t, r.Remove("job-1"))

	_, err := r.Get("job-1")
	assert.Error(t, err)
}
