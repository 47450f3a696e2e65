package models

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"hkboard/internal/utils"

	"github.com/google/uuid"
)

var (
	ErrTaskAlreadyCompleted = errors.New("task already completed")
	ErrTaskNotCompleted     = errors.New("task is not completed")
	ErrInvalidTask          = errors.New("invalid task")
)

type Task struct {
	ID          string     `gorm:"type:varchar(64);primaryKey"     json:"id"`
	RoomNumber  string     `gorm:"type:varchar(8);not null;index"  json:"roomNumber"`
	Message     string     `gorm:"type:text;not null"              json:"message"`
	CreatedBy   string     `gorm:"type:varchar(64);not null"       json:"createdBy"`
	Completed   bool       `gorm:"not null;default:false;index"    json:"completed"`
	CompletedBy *string    `gorm:"type:varchar(64)"                json:"completedBy,omitempty"`
	Timestamp   time.Time  `gorm:"not null;index"                  json:"timestamp"`
	CompletedAt *time.Time `                                       json:"completedAt,omitempty"`
}

func (Task) TableName() string {
	return "tasks"
}

// NewTaskID returns a time-ordered unique id so ids sort in creation order.
func NewTaskID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func NewTask(roomNumber, message, createdBy string, now time.Time) (Task, error) {
	task := Task{
		ID:         NewTaskID(),
		RoomNumber: roomNumber,
		Message:    utils.CleanText(message),
		CreatedBy:  createdBy,
		Timestamp:  now,
	}
	if err := task.Validate(); err != nil {
		return Task{}, err
	}
	return task, nil
}

func (t *Task) Complete(completedBy string, at time.Time) error {
	if t.Completed {
		return fmt.Errorf("%w: %s", ErrTaskAlreadyCompleted, t.ID)
	}
	if completedBy == "" {
		return fmt.Errorf("%w: completedBy is required", ErrInvalidTask)
	}

	completedAt := at
	t.Completed = true
	t.CompletedBy = &completedBy
	t.CompletedAt = &completedAt
	return nil
}

// Reopen undoes a completion.
func (t *Task) Reopen() error {
	if !t.Completed {
		return fmt.Errorf("%w: %s", ErrTaskNotCompleted, t.ID)
	}

	t.Completed = false
	t.CompletedBy = nil
	t.CompletedAt = nil
	return nil
}

func (t Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidTask)
	}
	if _, _, err := ParseRoomNumber(t.RoomNumber); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTask, err)
	}
	if t.Message == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidTask)
	}
	if t.Completed != (t.CompletedBy != nil) || t.Completed != (t.CompletedAt != nil) {
		return fmt.Errorf("%w: completion fields out of sync for %s", ErrInvalidTask, t.ID)
	}
	return nil
}

func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Timestamp.Equal(tasks[j].Timestamp) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].Timestamp.Before(tasks[j].Timestamp)
	})
}
