// Package taskqueue runs fire-and-forget background work in process.
package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Task is a unit of background work.
type Task struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Status    TaskStatus      `json:"status"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Recorder persists task state transitions. Recording failures never affect
// the task itself.
type Recorder interface {
	Record(ctx context.Context, task Task) error
}

// Func is the body of a task.
type Func func(ctx context.Context) error

// Dispatcher starts each task on its own goroutine. Tasks are not retried and
// are lost on process exit.
type Dispatcher struct {
	base     context.Context
	logger   *zap.Logger
	recorder Recorder
	timeout  time.Duration

	wg sync.WaitGroup
}

type Option func(*Dispatcher)

// WithRecorder mirrors task states to r.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithTimeout bounds the runtime of every task.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// NewDispatcher returns a dispatcher whose tasks inherit base.
func NewDispatcher(base context.Context, logger *zap.Logger, opts ...Option) *Dispatcher {
	if base == nil {
		base = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{base: base, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch schedules fn and returns immediately.
func (d *Dispatcher) Dispatch(taskType string, payload any, fn Func) Task {
	now := time.Now()
	task := Task{
		ID:        uuid.New().String(),
		Type:      taskType,
		Status:    TaskPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			task.Payload = raw
		}
	}
	d.record(task)

	d.wg.Add(1)
	go d.run(task, fn)
	return task
}

func (d *Dispatcher) run(task Task, fn Func) {
	defer d.wg.Done()

	ctx := d.base
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	d.transition(&task, TaskRunning, "")

	err := safeCall(ctx, fn)
	if err != nil {
		d.logger.Warn("background task failed",
			zap.String("task_id", task.ID),
			zap.String("type", task.Type),
			zap.Error(err),
		)
		d.transition(&task, TaskFailed, err.Error())
		return
	}
	d.transition(&task, TaskCompleted, "")
}

func (d *Dispatcher) transition(task *Task, status TaskStatus, errMsg string) {
	task.Status = status
	task.Error = errMsg
	task.UpdatedAt = time.Now()
	d.record(*task)
}

func (d *Dispatcher) record(task Task) {
	if d.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.recorder.Record(ctx, task); err != nil {
		d.logger.Debug("task record failed", zap.String("task_id", task.ID), zap.Error(err))
	}
}

// Wait blocks until every dispatched task has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func safeCall(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return fn(ctx)
}
