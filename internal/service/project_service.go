package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"keystone/internal/middleware"
	"keystone/internal/models"
	"keystone/internal/repository"

	"gorm.io/datatypes"
)

type ProjectService struct {
	projectRepo   repository.ProjectRepository
	notifications *NotificationService
}

type CreateProjectInput struct {
	OwnerID     uint
	Title       string
	Description string
	StartDate   *time.Time
	Deadline    *time.Time
	Priority    string
	TeamMembers []string
	Status      string
}

// UpdateProjectInput changes only the non-nil fields.
type UpdateProjectInput struct {
	OwnerID     uint
	ProjectID   uint
	Title       *string
	Description *string
	StartDate   *time.Time
	Deadline    *time.Time
	Priority    *string
	TeamMembers *[]string
	Status      *string
}

func NewProjectService(projectRepo repository.ProjectRepository, notifications *NotificationService) *ProjectService {
	return &ProjectService{projectRepo: projectRepo, notifications: notifications}
}

func (s *ProjectService) Create(ctx context.Context, in CreateProjectInput) (*models.Project, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, models.NewValidationError("title is required")
	}

	priority := models.PriorityMedium
	if in.Priority != "" {
		priority = models.Priority(in.Priority)
		if !priority.Valid() {
			return nil, models.NewValidationError("priority must be one of: High, Medium, Low")
		}
	}
	status := models.ProjectPlanning
	if in.Status != "" {
		status = models.ProjectStatus(in.Status)
		if !status.Valid() {
			return nil, models.NewValidationError("status must be one of: Planning, In Progress, Completed")
		}
	}
	members := in.TeamMembers
	if members == nil {
		members = []string{}
	}

	project := &models.Project{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		StartDate:   in.StartDate,
		Deadline:    in.Deadline,
		Priority:    priority,
		TeamMembers: members,
		Status:      status,
		CreatedBy:   in.OwnerID,
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) List(ctx context.Context, ownerID uint) ([]models.Project, error) {
	return s.projectRepo.ListByOwner(ctx, ownerID)
}

func (s *ProjectService) Get(ctx context.Context, id, ownerID uint) (*models.Project, error) {
	return s.projectRepo.GetForOwner(ctx, id, ownerID)
}

// Update applies a partial change. Moving a project to Completed notifies its owner.
func (s *ProjectService) Update(ctx context.Context, in UpdateProjectInput) (*models.Project, error) {
	current, err := s.projectRepo.GetForOwner(ctx, in.ProjectID, in.OwnerID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, models.NewValidationError("title is required")
		}
		fields["title"] = title
	}
	if in.Description != nil {
		fields["description"] = strings.TrimSpace(*in.Description)
	}
	if in.StartDate != nil {
		fields["start_date"] = *in.StartDate
	}
	if in.Deadline != nil {
		fields["deadline"] = *in.Deadline
	}
	if in.Priority != nil {
		p := models.Priority(*in.Priority)
		if !p.Valid() {
			return nil, models.NewValidationError("priority must be one of: High, Medium, Low")
		}
		fields["priority"] = p
	}
	if in.TeamMembers != nil {
		members := *in.TeamMembers
		if members == nil {
			members = []string{}
		}
		fields["team_members"] = datatypes.JSONSlice[string](members)
	}
	if in.Status != nil {
		st := models.ProjectStatus(*in.Status)
		if !st.Valid() {
			return nil, models.NewValidationError("status must be one of: Planning, In Progress, Completed")
		}
		fields["status"] = st
	}

	updated, err := s.projectRepo.Update(ctx, in.ProjectID, in.OwnerID, fields)
	if err != nil {
		return nil, err
	}

	if current.Status != models.ProjectCompleted && updated.Status == models.ProjectCompleted {
		s.notify(ctx, updated.CreatedBy, "Project completed",
			fmt.Sprintf("Project %q is complete.", updated.Title))
	}
	return updated, nil
}

func (s *ProjectService) Delete(ctx context.Context, id, ownerID uint) error {
	return s.projectRepo.DeleteForOwner(ctx, id, ownerID)
}

func (s *ProjectService) notify(ctx context.Context, userID uint, title, message string) {
	if s.notifications == nil {
		return
	}
	if _, err := s.notifications.Notify(ctx, userID, title, message); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to create notification", slog.String("error", err.Error()))
	}
}
