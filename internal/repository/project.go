package repository

import (
	"context"
	"errors"

	"keystone/internal/models"

	"gorm.io/gorm"
)

// ProjectRepository persists projects. Every read and write is scoped to the owner;
// a project owned by someone else is reported as not found.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	ListByOwner(ctx context.Context, ownerID uint) ([]models.Project, error)
	GetForOwner(ctx context.Context, id, ownerID uint) (*models.Project, error)
	Update(ctx context.Context, id, ownerID uint, fields map[string]any) (*models.Project, error)
	// DeleteForOwner removes the project and its tasks in one transaction.
	DeleteForOwner(ctx context.Context, id, ownerID uint) error
}

type projectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func withTasks(db *gorm.DB) *gorm.DB {
	return db.Preload("Tasks", func(db *gorm.DB) *gorm.DB {
		return db.Order("tasks.created_at ASC, tasks.id ASC")
	})
}

func projectError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError("Project")
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return models.NewInternalError(err)
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	if err := r.db.WithContext(ctx).Omit("Tasks").Create(project).Error; err != nil {
		return models.NewInternalError(err)
	}
	if project.Tasks == nil {
		project.Tasks = []models.Task{}
	}
	return nil
}

func (r *projectRepository) ListByOwner(ctx context.Context, ownerID uint) ([]models.Project, error) {
	projects := []models.Project{}
	err := r.db.WithContext(ctx).Scopes(withTasks).
		Where("created_by = ?", ownerID).
		Order("created_at DESC, id DESC").
		Find(&projects).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return projects, nil
}

func (r *projectRepository) GetForOwner(ctx context.Context, id, ownerID uint) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).Scopes(withTasks).
		Where("id = ? AND created_by = ?", id, ownerID).
		First(&project).Error
	if err != nil {
		return nil, projectError(err)
	}
	return &project, nil
}

func (r *projectRepository) Update(ctx context.Context, id, ownerID uint, fields map[string]any) (*models.Project, error) {
	var updated models.Project
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Project
		if err := tx.Where("id = ? AND created_by = ?", id, ownerID).First(&current).Error; err != nil {
			return err
		}
		if len(fields) > 0 {
			if err := tx.Model(&current).Updates(fields).Error; err != nil {
				return err
			}
		}
		return tx.Scopes(withTasks).First(&updated, id).Error
	})
	if err != nil {
		return nil, projectError(err)
	}
	return &updated, nil
}

func (r *projectRepository) DeleteForOwner(ctx context.Context, id, ownerID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Where("id = ? AND created_by = ?", id, ownerID).First(&project).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		return tx.Delete(&project).Error
	})
	if err != nil {
		return projectError(err)
	}
	return nil
}
