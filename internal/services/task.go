package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/huangang/studyroom/internal/models"
	"gorm.io/gorm"
)

const deadlineLayout = "2006-01-02"

type TaskService struct {
	db *gorm.DB
}

func NewTaskService(db *gorm.DB) *TaskService {
	return &TaskService{db: db}
}

// SaveTaskRequest creates a task when ID is zero and updates the caller's
// task otherwise. Deadline is a YYYY-MM-DD date or empty.
type SaveTaskRequest struct {
	ID          uint   `json:"id" form:"id"`
	Title       string `json:"title" form:"title" validate:"required,max=255"`
	Description string `json:"description" form:"description" validate:"max=65535"`
	Deadline    string `json:"deadline" form:"deadline" validate:"omitempty,datetime=2006-01-02"`
	Priority    string `json:"priority" form:"priority" validate:"omitempty,oneof=low medium high"`
	Progress    int    `json:"progress" form:"progress" validate:"min=0,max=100"`
	Status      string `json:"status" form:"status" validate:"omitempty,oneof=pending in_progress completed"`
}

func (r *SaveTaskRequest) normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Deadline = strings.TrimSpace(r.Deadline)
	if r.Priority == "" {
		r.Priority = "medium"
	}
	if r.Status == "" {
		r.Status = models.TaskStatusPending
	}
}

func (r *SaveTaskRequest) deadline() *time.Time {
	if r.Deadline == "" {
		return nil
	}
	// validated above
	d, _ := time.Parse(deadlineLayout, r.Deadline)
	return &d
}

func (s *TaskService) List(ctx context.Context, id Identity) ([]models.Task, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	var tasks []models.Task
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", id.UserID).
		Order("id ASC").
		Find(&tasks).Error; err != nil {
		return nil, persistenceError("list tasks", err)
	}
	return tasks, nil
}

func (s *TaskService) Save(ctx context.Context, id Identity, req *SaveTaskRequest) (*models.Task, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	req.normalize()
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	if req.ID == 0 {
		task := models.Task{
			UserID:      id.UserID,
			Title:       req.Title,
			Description: req.Description,
			Deadline:    req.deadline(),
			Priority:    req.Priority,
			Progress:    req.Progress,
			Status:      req.Status,
		}
		if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
			return nil, persistenceError("create task", err)
		}
		return &task, nil
	}

	var task models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", req.ID, id.UserID).First(&task).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return persistenceError("load task", err)
		}

		task.Title = req.Title
		task.Description = req.Description
		task.Deadline = req.deadline()
		task.Priority = req.Priority
		task.Progress = req.Progress
		task.Status = req.Status
		if err := tx.Save(&task).Error; err != nil {
			return persistenceError("update task", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) Delete(ctx context.Context, id Identity, taskID uint) error {
	if err := requireIdentity(id); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", taskID, id.UserID).Delete(&models.Task{})
	if res.Error != nil {
		return persistenceError("delete task", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
