package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/satriahrh/voicemap/server/internal/metrics"
)

// ErrExecutorClosed is returned by Submit after Shutdown
var ErrExecutorClosed = errors.New("task executor is shut down")

// retainFinished is how many finished instances are kept for inspection
const retainFinished = 500

// Executor runs detached background tasks with bounded concurrency. Tasks run
// on the executor's own context and are only cancelled by Shutdown.
type Executor struct {
	logger   *zap.Logger
	metrics  *metrics.Metrics
	sem      *semaphore.Weighted
	timeout  time.Duration
	baseCtx  context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	eventCh  chan TaskEvent
	closed   bool
	finished []TaskID

	instances map[TaskID]*TaskInstance
	done      map[TaskID]chan struct{}
	mu        sync.RWMutex
}

// NewExecutor creates an executor running at most maxConcurrent tasks at once
func NewExecutor(maxConcurrent int, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Executor {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		logger:    logger,
		metrics:   m,
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		timeout:   timeout,
		baseCtx:   ctx,
		cancel:    cancel,
		eventCh:   make(chan TaskEvent, 100),
		instances: make(map[TaskID]*TaskInstance),
		done:      make(map[TaskID]chan struct{}),
	}
}

// Submit queues a task and returns immediately
func (e *Executor) Submit(task Task) (TaskID, error) {
	if task.Run == nil {
		return "", fmt.Errorf("task %q has no function", task.Name)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", ErrExecutorClosed
	}
	id := TaskID(fmt.Sprintf("%s_%s", task.Name, uuid.NewString()))
	instance := &TaskInstance{
		ID:          id,
		Name:        task.Name,
		SessionID:   task.SessionID,
		State:       TaskStateQueued,
		SubmittedAt: time.Now(),
	}
	e.instances[id] = instance
	e.done[id] = make(chan struct{})
	e.wg.Add(1)
	e.mu.Unlock()

	e.metrics.TaskQueued()
	e.emitEvent(TaskEvent{TaskID: id, Name: task.Name, Type: EventTaskQueued, Timestamp: time.Now()})

	go e.execute(id, task)

	e.logger.Debug("Task submitted", zap.String("taskID", string(id)), zap.String("name", task.Name))
	return id, nil
}

func (e *Executor) execute(id TaskID, task Task) {
	defer e.wg.Done()

	var runErr error
	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("task panicked: %v", r)
		}
		e.finish(id, task.Name, runErr)
	}()

	if err := e.sem.Acquire(e.baseCtx, 1); err != nil {
		runErr = err
		return
	}
	defer e.sem.Release(1)

	timeout := e.timeout
	if task.Timeout > 0 {
		timeout = task.Timeout
	}
	ctx, cancel := context.WithTimeout(e.baseCtx, timeout)
	defer cancel()

	now := time.Now()
	e.mu.Lock()
	if instance, ok := e.instances[id]; ok {
		instance.State = TaskStateRunning
		instance.StartedAt = &now
	}
	e.mu.Unlock()
	e.emitEvent(TaskEvent{TaskID: id, Name: task.Name, Type: EventTaskStarted, Timestamp: now})

	runErr = task.Run(ctx)
}

func (e *Executor) finish(id TaskID, name string, runErr error) {
	now := time.Now()
	state := TaskStateCompleted
	eventType := EventTaskCompleted
	errMsg := ""
	if runErr != nil {
		state = TaskStateFailed
		eventType = EventTaskFailed
		errMsg = runErr.Error()
		e.logger.Warn("Background task failed",
			zap.String("taskID", string(id)),
			zap.String("name", name),
			zap.Error(runErr))
	} else {
		e.logger.Debug("Background task completed", zap.String("taskID", string(id)))
	}

	e.mu.Lock()
	if instance, ok := e.instances[id]; ok {
		instance.State = state
		instance.CompletedAt = &now
		instance.Error = errMsg
	}
	e.finished = append(e.finished, id)
	if len(e.finished) > retainFinished {
		for _, old := range e.finished[:len(e.finished)-retainFinished] {
			delete(e.instances, old)
		}
		e.finished = append([]TaskID(nil), e.finished[len(e.finished)-retainFinished:]...)
	}
	e.mu.Unlock()

	e.metrics.TaskFinished(string(state))
	e.emitEvent(TaskEvent{TaskID: id, Name: name, Type: eventType, Timestamp: now, Error: errMsg})

	// Waiters are released last so they observe the final state and event
	e.mu.Lock()
	if ch, ok := e.done[id]; ok {
		close(ch)
		delete(e.done, id)
	}
	e.mu.Unlock()
}

// Get returns a copy of a task instance
func (e *Executor) Get(id TaskID) (TaskInstance, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	instance, ok := e.instances[id]
	if !ok {
		return TaskInstance{}, false
	}
	return *instance, true
}

// List returns copies of the known task instances, optionally for one session
func (e *Executor) List(sessionID string) []TaskInstance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]TaskInstance, 0, len(e.instances))
	for _, instance := range e.instances {
		if sessionID == "" || instance.SessionID == sessionID {
			out = append(out, *instance)
		}
	}
	return out
}

// Wait blocks until the task finishes or ctx is done
func (e *Executor) Wait(ctx context.Context, id TaskID) (TaskInstance, error) {
	e.mu.RLock()
	ch, pending := e.done[id]
	_, known := e.instances[id]
	e.mu.RUnlock()

	if !known {
		return TaskInstance{}, fmt.Errorf("unknown task %s", id)
	}
	if pending {
		select {
		case <-ch:
		case <-ctx.Done():
			return TaskInstance{}, ctx.Err()
		}
	}
	instance, _ := e.Get(id)
	return instance, nil
}

// Drain blocks until every submitted task has finished or ctx is done
func (e *Executor) Drain(ctx context.Context) error {
	doneCh := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(doneCh)
	}()
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks, waits for running ones until ctx is done
// and then cancels whatever is left.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	err := e.Drain(ctx)
	e.cancel()
	if err != nil {
		e.logger.Warn("Task executor shut down with tasks still running", zap.Error(err))
	}
	return err
}

func (e *Executor) emitEvent(event TaskEvent) {
	select {
	case e.eventCh <- event:
	default:
		e.logger.Debug("Event channel full, dropping event", zap.String("type", event.Type))
	}
}

// EventChannel returns the event channel for listening to task events
func (e *Executor) EventChannel() <-chan TaskEvent {
	return e.eventCh
}
