package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"keystone/internal/middleware"
	"keystone/internal/models"
	"keystone/internal/repository"
)

type TaskService struct {
	taskRepo      repository.TaskRepository
	userRepo      repository.UserRepository
	notifications *NotificationService
}

type CreateTaskInput struct {
	OwnerID     uint
	ProjectID   uint
	Title       string
	Description string
	Deadline    *time.Time
	Status      string
	Priority    string
	AssignedTo  *uint
}

// UpdateTaskInput changes only the non-nil fields. AssignedTo changes the assignee only
// when Set.
type UpdateTaskInput struct {
	OwnerID     uint
	TaskID      uint
	ProjectID   *uint
	Title       *string
	Description *string
	Deadline    *time.Time
	Status      *string
	Priority    *string
	AssignedTo  AssigneeUpdate
}

func NewTaskService(taskRepo repository.TaskRepository, userRepo repository.UserRepository, notifications *NotificationService) *TaskService {
	return &TaskService{taskRepo: taskRepo, userRepo: userRepo, notifications: notifications}
}

func parseTaskStatus(raw string) (models.TaskStatus, error) {
	st := models.TaskStatus(raw)
	if !st.Valid() {
		return "", models.NewValidationError("status must be one of: Not Started, In Progress, Completed")
	}
	return st, nil
}

func parsePriority(raw string) (models.Priority, error) {
	p := models.Priority(raw)
	if !p.Valid() {
		return "", models.NewValidationError("priority must be one of: Low, Medium, High")
	}
	return p, nil
}

// Create inserts the task after checking that the project belongs to the caller. The
// assignee, when set, is notified.
func (s *TaskService) Create(ctx context.Context, in CreateTaskInput) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, models.NewValidationError("title is required")
	}
	if in.ProjectID == 0 {
		return nil, models.NewValidationError("project is required")
	}

	status := models.TaskNotStarted
	if in.Status != "" {
		st, err := parseTaskStatus(in.Status)
		if err != nil {
			return nil, err
		}
		status = st
	}
	priority := models.PriorityMedium
	if in.Priority != "" {
		p, err := parsePriority(in.Priority)
		if err != nil {
			return nil, err
		}
		priority = p
	}
	if err := s.requireUser(ctx, in.AssignedTo); err != nil {
		return nil, err
	}

	task := &models.Task{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Deadline:    in.Deadline,
		Status:      status,
		Priority:    priority,
		AssignedTo:  in.AssignedTo,
		ProjectID:   in.ProjectID,
	}
	if err := s.taskRepo.CreateInProject(ctx, task, in.OwnerID); err != nil {
		return nil, err
	}

	if task.AssignedTo != nil {
		s.notifyAssignee(ctx, *task.AssignedTo, task.Title)
	}
	return s.taskRepo.GetForOwner(ctx, task.ID, in.OwnerID)
}

func (s *TaskService) List(ctx context.Context, ownerID uint) ([]models.Task, error) {
	return s.taskRepo.ListForOwner(ctx, ownerID)
}

func (s *TaskService) Get(ctx context.Context, id, ownerID uint) (*models.Task, error) {
	return s.taskRepo.GetForOwner(ctx, id, ownerID)
}

func (s *TaskService) Update(ctx context.Context, in UpdateTaskInput) (*models.Task, error) {
	current, err := s.taskRepo.GetForOwner(ctx, in.TaskID, in.OwnerID)
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
	if in.Deadline != nil {
		fields["deadline"] = *in.Deadline
	}
	if in.Status != nil {
		st, err := parseTaskStatus(*in.Status)
		if err != nil {
			return nil, err
		}
		fields["status"] = st
	}
	if in.Priority != nil {
		p, err := parsePriority(*in.Priority)
		if err != nil {
			return nil, err
		}
		fields["priority"] = p
	}
	if in.ProjectID != nil {
		if *in.ProjectID == 0 {
			return nil, models.NewValidationError("project is required")
		}
		fields["project_id"] = *in.ProjectID
	}
	reassigned := false
	if in.AssignedTo.Set {
		if in.AssignedTo.ID == nil {
			fields["assigned_to"] = nil
		} else {
			if err := s.requireUser(ctx, in.AssignedTo.ID); err != nil {
				return nil, err
			}
			fields["assigned_to"] = *in.AssignedTo.ID
			reassigned = current.AssignedTo == nil || *current.AssignedTo != *in.AssignedTo.ID
		}
	}

	updated, err := s.taskRepo.UpdateForOwner(ctx, in.TaskID, in.OwnerID, fields)
	if err != nil {
		return nil, err
	}
	if reassigned {
		s.notifyAssignee(ctx, *in.AssignedTo.ID, updated.Title)
	}
	return updated, nil
}

// Complete marks the task Completed; completing an already completed task is a no-op.
func (s *TaskService) Complete(ctx context.Context, id, ownerID uint) (*models.Task, error) {
	status := string(models.TaskCompleted)
	return s.Update(ctx, UpdateTaskInput{OwnerID: ownerID, TaskID: id, Status: &status})
}

func (s *TaskService) Delete(ctx context.Context, id, ownerID uint) error {
	return s.taskRepo.DeleteForOwner(ctx, id, ownerID)
}

func (s *TaskService) requireUser(ctx context.Context, userID *uint) error {
	if userID == nil {
		return nil
	}
	if _, err := s.userRepo.GetByID(ctx, *userID); err != nil {
		if models.StatusFor(err) == http.StatusNotFound {
			return models.NewValidationError("assignedTo must reference an existing user")
		}
		return err
	}
	return nil
}

func (s *TaskService) notifyAssignee(ctx context.Context, userID uint, title string) {
	if s.notifications == nil {
		return
	}
	_, err := s.notifications.Notify(ctx, userID, "New task assigned",
		fmt.Sprintf("You have been assigned %q.", title))
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to create notification", slog.String("error", err.Error()))
	}
}
