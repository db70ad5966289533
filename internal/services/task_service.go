package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"github.com/rxtech-lab/pharmalink/internal/logger"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"gorm.io/gorm"
)

// Task kinds enqueued by the services.
const (
	TaskKindResultImport     = "result_import"
	TaskKindSignatureWebhook = "signature_webhook"
	TaskKindDocumentExpiry   = "document_expiry"
)

// ErrQueueClosed is returned by Enqueue after Stop.
var ErrQueueClosed = errors.New("task queue is closed")

// TaskFunc is the body of a background task. The returned JSON is stored as
// the task output.
type TaskFunc func(ctx context.Context) (models.JSON, error)

type TaskOptions struct {
	Workers     int
	MaxAttempts int
	BaseBackoff time.Duration
	Capacity    int
}

func (o TaskOptions) withDefaults() TaskOptions {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 500 * time.Millisecond
	}
	if o.Capacity <= 0 {
		o.Capacity = 100
	}
	return o
}

// TaskService runs background jobs on a fixed worker pool and records every
// job as a Task row.
type TaskService interface {
	Start(ctx context.Context)
	Enqueue(ctx context.Context, kind string, submissionID *uint, fn TaskFunc) (*models.Task, error)
	GetTask(id string) (*models.Task, error)
	ListTasks(f Filter) (Page[models.Task], error)
	Stop()
}

var taskFields = FieldSet{
	"kind":          "kind",
	"status":        "status",
	"submission_id": "submission_id",
	"created_at":    "created_at",
}

type queuedTask struct {
	id           string
	kind         string
	submissionID *uint
	requestID    string
	fn           TaskFunc
}

type taskService struct {
	db    *gorm.DB
	opts  TaskOptions
	queue chan queuedTask

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewTaskService(db *gorm.DB, opts TaskOptions) TaskService {
	opts = opts.withDefaults()
	return &taskService{
		db:    db,
		opts:  opts,
		queue: make(chan queuedTask, opts.Capacity),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (s *taskService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	logger.Info(ctx, "task workers started", "workers", s.opts.Workers)
}

// Stop cancels running tasks and waits for the workers to exit. Tasks still
// queued stay QUEUED.
func (s *taskService) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *taskService) Enqueue(ctx context.Context, kind string, submissionID *uint, fn TaskFunc) (*models.Task, error) {
	if fn == nil {
		return nil, apperrors.Validation("TaskService.Enqueue", "task %s has no body", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrQueueClosed
	}

	task := &models.Task{
		ID:           uuid.New().String(),
		Kind:         kind,
		Status:       models.TaskStatusQueued,
		MaxAttempts:  s.opts.MaxAttempts,
		SubmissionID: submissionID,
	}
	if err := s.db.Create(task).Error; err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	requestID, _ := ctx.Value(logger.RequestIDKey).(string)
	select {
	case s.queue <- queuedTask{id: task.ID, kind: kind, submissionID: submissionID, requestID: requestID, fn: fn}:
	default:
		s.finish(ctx, task.ID, models.TaskStatusFailed, nil, "task queue is full")
		return nil, apperrors.External("TaskService.Enqueue", fmt.Errorf("task queue is full"))
	}

	logger.Debug(ctx, "task enqueued", "task_id", task.ID, "kind", kind)
	return task, nil
}

func (s *taskService) GetTask(id string) (*models.Task, error) {
	var task models.Task
	if err := s.db.First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("TaskService.GetTask", "task %s not found", id)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

func (s *taskService) ListTasks(f Filter) (Page[models.Task], error) {
	return Paginate[models.Task](s.db, f, taskFields, "created_at DESC")
}

func (s *taskService) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.queue:
			s.run(ctx, job)
		}
	}
}

func (s *taskService) run(ctx context.Context, job queuedTask) {
	if job.requestID != "" {
		ctx = context.WithValue(ctx, logger.RequestIDKey, job.requestID)
	}
	if job.submissionID != nil {
		ctx = context.WithValue(ctx, logger.SubmissionIDKey, *job.submissionID)
	}

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		err := s.db.Model(&models.Task{}).Where("id = ?", job.id).Updates(map[string]interface{}{
			"status":   models.TaskStatusRunning,
			"attempts": attempt,
		}).Error
		if err != nil {
			logger.Error(ctx, "failed to mark task running", "task_id", job.id, "error", err)
		}

		output, err := s.invoke(ctx, job.fn)
		if err == nil {
			s.finish(ctx, job.id, models.TaskStatusSucceeded, output, "")
			logger.Info(ctx, "task succeeded", "task_id", job.id, "kind", job.kind, "attempts", attempt)
			return
		}
		lastErr = err
		logger.Warn(ctx, "task attempt failed", "task_id", job.id, "kind", job.kind, "attempt", attempt, "error", err)

		if !apperrors.Retryable(err) || attempt == s.opts.MaxAttempts {
			break
		}
		backoff := s.opts.BaseBackoff * time.Duration(1<<(attempt-1))
		select {
		case <-ctx.Done():
			s.finish(context.WithoutCancel(ctx), job.id, models.TaskStatusFailed, nil, ctx.Err().Error())
			return
		case <-time.After(backoff):
		}
	}

	s.finish(ctx, job.id, models.TaskStatusFailed, nil, lastErr.Error())
	logger.Error(ctx, "task failed", "task_id", job.id, "kind", job.kind, "error", lastErr)
}

func (s *taskService) invoke(ctx context.Context, fn TaskFunc) (output models.JSON, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

func (s *taskService) finish(ctx context.Context, id string, status models.TaskStatus, output models.JSON, lastError string) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":      status,
		"last_error":  lastError,
		"finished_at": &now,
	}
	if output != nil {
		updates["output"] = output
	}
	if err := s.db.Model(&models.Task{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		logger.Error(ctx, "failed to finish task", "task_id", id, "error", err)
	}
}
