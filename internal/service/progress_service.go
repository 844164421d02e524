package service

import (
	"context"

	"keystone/internal/models"
	"keystone/internal/repository"
)

type ProgressService struct {
	projectRepo repository.ProjectRepository
}

func NewProgressService(projectRepo repository.ProjectRepository) *ProgressService {
	return &ProgressService{projectRepo: projectRepo}
}

// Summary counts the caller's projects and the tasks inside them.
func (s *ProgressService) Summary(ctx context.Context, ownerID uint) (*models.Progress, error) {
	projects, err := s.projectRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	var projectsDone, tasksTotal, tasksDone int
	for _, p := range projects {
		if p.Status == models.ProjectCompleted {
			projectsDone++
		}
		for _, t := range p.Tasks {
			tasksTotal++
			if t.Status == models.TaskCompleted {
				tasksDone++
			}
		}
	}

	return &models.Progress{
		Tasks:    models.NewProgressCount(tasksDone, tasksTotal),
		Projects: models.NewProgressCount(projectsDone, len(projects)),
	}, nil
}
