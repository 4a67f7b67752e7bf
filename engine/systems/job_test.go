package systems

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestJobSystem_RunsInSubmissionOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	js, err := NewJobSystem(1, 4)
	require.NoError(t, err)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 20; i++ {
		i := i
		require.NoError(t, js.Submit(JobTask{
			Name: "ordered",
			OnStart: func(ctx context.Context) error {
				mu.Lock()
				defer mu.Unlock()
				order = append(order, i)
				return nil
			},
		}))
	}
	js.Wait()
	require.NoError(t, js.Shutdown())

	require.Len(t, order, 20)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestJobSystem_Callbacks(t *testing.T) {
	defer goleak.VerifyNone(t)

	js, err := NewJobSystem(2, 0)
	require.NoError(t, err)
	defer js.Shutdown()

	boom := errors.New("boom")
	var mu sync.Mutex
	var completed, finished int
	var failures []error
	record := func(fn func()) func() {
		return func() {
			mu.Lock()
			defer mu.Unlock()
			fn()
		}
	}
	onFailure := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, err)
	}

	tasks := []JobTask{
		{Name: "ok", OnStart: func(context.Context) error { return nil }},
		{Name: "fails", OnStart: func(context.Context) error { return boom }},
		{Name: "panics", OnStart: func(context.Context) error { panic("kaboom") }},
		{Name: "no entry point"},
	}
	for _, task := range tasks {
		task.OnComplete = record(func() { completed++ })
		task.OnFailure = onFailure
		task.OnCompletionCallback = record(func() { finished++ })
		require.NoError(t, js.Submit(task))
	}
	js.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, completed)
	assert.Equal(t, 4, finished)
	require.Len(t, failures, 3)
	assert.Contains(t, failures, boom)
}

func TestJobSystem_ShutdownCancelsRunningJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	js, err := NewJobSystem(1, 1)
	require.NoError(t, err)

	started := make(chan struct{})
	seen := make(chan error, 1)
	require.NoError(t, js.Submit(JobTask{
		Name: "long",
		OnStart: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			seen <- ctx.Err()
			return ctx.Err()
		},
	}))
	<-started

	require.NoError(t, js.Shutdown())
	assert.ErrorIs(t, <-seen, context.Canceled)
	require.NoError(t, js.Shutdown(), "shutdown is idempotent")
	assert.ErrorIs(t, js.Submit(JobTask{Name: "late"}), ErrJobSystemClosed)
}

func TestJobSystem_AddWorkNonBlocking(t *testing.T) {
	defer goleak.VerifyNone(t)

	js, err := NewJobSystem(1, 0)
	require.NoError(t, err)

	done := make(chan struct{})
	js.AddWorkNonBlocking(JobTask{
		Name:    "async",
		OnStart: func(context.Context) error { close(done); return nil },
	})
	<-done
	js.Wait()
	require.NoError(t, js.Shutdown())
}

func TestNewJobSystem_Validation(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}
