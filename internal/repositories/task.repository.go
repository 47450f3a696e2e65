package repositories

import (
	"context"
	"errors"
	"time"

	"hkboard/internal/database"
	. "hkboard/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const TASKS_CACHE_PREFIX = "tasks"

type TaskRepository interface {
	GetAll(ctx context.Context, tx *gorm.DB) ([]Task, error)
	Create(ctx context.Context, tx *gorm.DB, task *Task) error
	Complete(ctx context.Context, tx *gorm.DB, id string, completedBy string, at time.Time) error
	Reopen(ctx context.Context, tx *gorm.DB, id string) error
	ReplaceAll(ctx context.Context, tx *gorm.DB, tasks []Task) error
}

type taskRepository struct {
	cache collectionCache[Task]
}

func NewTaskRepository(cache database.CacheClient) TaskRepository {
	return &taskRepository{
		cache: collectionCache[Task]{cache: cache, prefix: TASKS_CACHE_PREFIX},
	}
}

func (r *taskRepository) GetAll(ctx context.Context, tx *gorm.DB) ([]Task, error) {
	log := logger.New("taskRepository").TraceFromContext(ctx).Function("GetAll")

	if cached, found := r.cache.get(ctx); found {
		return cached, nil
	}

	var tasks []Task
	if err := tx.WithContext(ctx).Order("timestamp ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, log.Err("failed to get tasks", err)
	}

	r.cache.set(ctx, tasks)
	return tasks, nil
}

// Create is idempotent on the task id.
func (r *taskRepository) Create(ctx context.Context, tx *gorm.DB, task *Task) error {
	log := logger.New("taskRepository").TraceFromContext(ctx).Function("Create")

	if err := task.Validate(); err != nil {
		return err
	}

	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(task).Error; err != nil {
		return log.Err("failed to create task", err, "taskID", task.ID)
	}

	r.cache.invalidate(ctx)
	return nil
}

// Complete marks an open task done. Completing twice is a conflict, not a silent success.
func (r *taskRepository) Complete(
	ctx context.Context,
	tx *gorm.DB,
	id string,
	completedBy string,
	at time.Time,
) error {
	log := logger.New("taskRepository").TraceFromContext(ctx).Function("Complete")

	result := tx.WithContext(ctx).
		Model(&Task{}).
		Where("id = ? AND completed = ?", id, false).
		Updates(map[string]any{
			"completed":    true,
			"completed_by": completedBy,
			"completed_at": at,
		})
	if result.Error != nil {
		return log.Err("failed to complete task", result.Error, "taskID", id)
	}

	if result.RowsAffected == 0 {
		return r.missingOrConflict(ctx, tx, id)
	}

	r.cache.invalidate(ctx)
	return nil
}

func (r *taskRepository) Reopen(ctx context.Context, tx *gorm.DB, id string) error {
	log := logger.New("taskRepository").TraceFromContext(ctx).Function("Reopen")

	result := tx.WithContext(ctx).
		Model(&Task{}).
		Where("id = ? AND completed = ?", id, true).
		Updates(map[string]any{
			"completed":    false,
			"completed_by": nil,
			"completed_at": nil,
		})
	if result.Error != nil {
		return log.Err("failed to reopen task", result.Error, "taskID", id)
	}

	if result.RowsAffected == 0 {
		return r.missingOrConflict(ctx, tx, id)
	}

	r.cache.invalidate(ctx)
	return nil
}

func (r *taskRepository) missingOrConflict(ctx context.Context, tx *gorm.DB, id string) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&Task{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func (r *taskRepository) ReplaceAll(ctx context.Context, tx *gorm.DB, tasks []Task) error {
	log := logger.New("taskRepository").TraceFromContext(ctx).Function("ReplaceAll")

	for _, task := range tasks {
		if err := task.Validate(); err != nil {
			return log.Err("refusing to replace tasks", err, "taskID", task.ID)
		}
	}

	if err := tx.WithContext(ctx).Where("1 = 1").Delete(&Task{}).Error; err != nil {
		return log.Err("failed to clear tasks", err)
	}
	if len(tasks) > 0 {
		if err := tx.WithContext(ctx).CreateInBatches(tasks, 100).Error; err != nil {
			return log.Err("failed to insert tasks", err, "count", len(tasks))
		}
	}

	r.cache.invalidate(ctx)
	return nil
}

// IsConflict reports whether err is a state conflict from a repository.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
