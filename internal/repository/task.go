package repository

import (
	"context"
	"errors"

	"keystone/internal/models"

	"gorm.io/gorm"
)

// TaskRepository persists tasks. Ownership is inherited from the parent project.
type TaskRepository interface {
	// CreateInProject checks that the task's project belongs to ownerID and inserts
	// the task in the same transaction.
	CreateInProject(ctx context.Context, task *models.Task, ownerID uint) error
	ListForOwner(ctx context.Context, ownerID uint) ([]models.Task, error)
	GetForOwner(ctx context.Context, id, ownerID uint) (*models.Task, error)
	// UpdateForOwner applies fields; a "project_id" entry must name another project of ownerID.
	UpdateForOwner(ctx context.Context, id, ownerID uint, fields map[string]any) (*models.Task, error)
	DeleteForOwner(ctx context.Context, id, ownerID uint) error
}

type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func ownedTasks(ownerID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Select("tasks.*").
			Joins("JOIN projects ON projects.id = tasks.project_id").
			Where("projects.created_by = ?", ownerID)
	}
}

func requireProject(tx *gorm.DB, projectID, ownerID uint) error {
	var count int64
	if err := tx.Model(&models.Project{}).Where("id = ? AND created_by = ?", projectID, ownerID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return models.NewNotFoundError("Project")
	}
	return nil
}

func taskError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError("Task")
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return models.NewInternalError(err)
}

func (r *taskRepository) CreateInProject(ctx context.Context, task *models.Task, ownerID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireProject(tx, task.ProjectID, ownerID); err != nil {
			return err
		}
		return tx.Omit("Assignee").Create(task).Error
	})
	if err != nil {
		return taskError(err)
	}
	return nil
}

func (r *taskRepository) ListForOwner(ctx context.Context, ownerID uint) ([]models.Task, error) {
	tasks := []models.Task{}
	err := r.db.WithContext(ctx).Scopes(ownedTasks(ownerID)).
		Preload("Assignee").
		Order("tasks.id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return tasks, nil
}

func (r *taskRepository) GetForOwner(ctx context.Context, id, ownerID uint) (*models.Task, error) {
	task, err := getOwnedTask(r.db.WithContext(ctx), id, ownerID)
	if err != nil {
		return nil, taskError(err)
	}
	return task, nil
}

func getOwnedTask(db *gorm.DB, id, ownerID uint) (*models.Task, error) {
	var task models.Task
	err := db.Scopes(ownedTasks(ownerID)).
		Preload("Assignee").
		Where("tasks.id = ?", id).
		Take(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) UpdateForOwner(ctx context.Context, id, ownerID uint, fields map[string]any) (*models.Task, error) {
	var updated *models.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := getOwnedTask(tx, id, ownerID)
		if err != nil {
			return err
		}
		if projectID, ok := fields["project_id"].(uint); ok && projectID != current.ProjectID {
			if err := requireProject(tx, projectID, ownerID); err != nil {
				return err
			}
		}
		if len(fields) > 0 {
			if err := tx.Model(&models.Task{}).Where("id = ?", current.ID).Updates(fields).Error; err != nil {
				return err
			}
		}
		updated, err = getOwnedTask(tx, id, ownerID)
		return err
	})
	if err != nil {
		return nil, taskError(err)
	}
	return updated, nil
}

func (r *taskRepository) DeleteForOwner(ctx context.Context, id, ownerID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := getOwnedTask(tx, id, ownerID)
		if err != nil {
			return err
		}
		return tx.Delete(&models.Task{}, current.ID).Error
	})
	if err != nil {
		return taskError(err)
	}
	return nil
}
