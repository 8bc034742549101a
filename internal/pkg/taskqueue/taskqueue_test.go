package taskqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRecorder struct {
	mu     sync.Mutex
	states map[string][]TaskStatus
}

func (m *memRecorder) Record(_ context.Context, task Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.states == nil {
		m.states = map[string][]TaskStatus{}
	}
	m.states[task.ID] = append(m.states[task.ID], task.Status)
	return nil
}

func (m *memRecorder) get(id string) []TaskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TaskStatus(nil), m.states[id]...)
}

func TestDispatch_RunsAndRecords(t *testing.T) {
	rec := &memRecorder{}
	d := NewDispatcher(context.Background(), nil, WithRecorder(rec))

	var ran atomic.Bool
	task := d.Dispatch("analysis", map[string]uint{"paperId": 1}, func(context.Context) error {
		ran.Store(true)
		return nil
	})
	d.Wait()

	assert.True(t, ran.Load())
	assert.NotEmpty(t, task.ID)
	assert.JSONEq(t, `{"paperId":1}`, string(task.Payload))
	assert.Equal(t, []TaskStatus{TaskPending, TaskRunning, TaskCompleted}, rec.get(task.ID))
}

func TestDispatch_FailureAndPanic(t *testing.T) {
	rec := &memRecorder{}
	d := NewDispatcher(context.Background(), nil, WithRecorder(rec))

	failed := d.Dispatch("x", nil, func(context.Context) error { return errors.New("boom") })
	panicked := d.Dispatch("x", nil, func(context.Context) error { panic("oops") })
	d.Wait()

	assert.Equal(t, TaskFailed, rec.get(failed.ID)[2])
	assert.Equal(t, TaskFailed, rec.get(panicked.ID)[2])
}

func TestDispatch_DoesNotBlock(t *testing.T) {
	d := NewDispatcher(context.Background(), nil)
	release := make(chan struct{})

	start := time.Now()
	d.Dispatch("slow", nil, func(context.Context) error {
		<-release
		return nil
	})
	assert.Less(t, time.Since(start), time.Second)

	close(release)
	d.Wait()
}

func TestDispatch_Timeout(t *testing.T) {
	d := NewDispatcher(context.Background(), nil, WithTimeout(10*time.Millisecond))

	var ctxErr error
	d.Dispatch("slow", nil, func(ctx context.Context) error {
		<-ctx.Done()
		ctxErr = ctx.Err()
		return ctxErr
	})
	d.Wait()
	require.Error(t, ctxErr)
	assert.ErrorIs(t, ctxErr, context.DeadlineExceeded)
}
