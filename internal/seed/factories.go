package seed

import (
	"fmt"
	"strings"
	"time"

	"keystone/internal/models"
)

var (
	priorities      = []string{string(models.PriorityLow), string(models.PriorityMedium), string(models.PriorityHigh)}
	projectStatuses = []string{string(models.ProjectPlanning), string(models.ProjectInProgress), string(models.ProjectCompleted)}
	taskStatuses    = []string{string(models.TaskNotStarted), string(models.TaskInProgress), string(models.TaskCompleted)}
)

// buildUser suffixes the index so usernames and emails stay unique within a run.
func (s *Seeder) buildUser(i int, passwordHash string) models.User {
	username := fmt.Sprintf("%s%d", sanitizeUsername(s.fake.Username()), i)
	return models.User{
		Username:   username,
		Email:      strings.ToLower(username) + "@example.com",
		Password:   passwordHash,
		Phone:      s.fake.Phone(),
		Name:       s.fake.Name(),
		IsComplete: true,
	}
}

func (s *Seeder) buildProject(ownerID uint) models.Project {
	start := s.fake.DateRange(time.Now().AddDate(0, -3, 0), time.Now())
	deadline := start.AddDate(0, 0, s.fake.Number(14, 120))

	members := make([]string, s.fake.Number(0, 4))
	for i := range members {
		members[i] = s.fake.FirstName()
	}

	return models.Project{
		Title:       s.fake.AppName() + " " + s.fake.BuzzWord(),
		Description: s.fake.Paragraph(1, 3, 12, " "),
		StartDate:   &start,
		Deadline:    &deadline,
		Priority:    models.Priority(s.fake.RandomString(priorities)),
		TeamMembers: members,
		Status:      models.ProjectStatus(s.fake.RandomString(projectStatuses)),
		CreatedBy:   ownerID,
	}
}

func (s *Seeder) buildTask(p models.Project) models.Task {
	task := models.Task{
		Title:       strings.TrimSuffix(s.fake.Sentence(4), "."),
		Description: s.fake.Sentence(12),
		Status:      models.TaskStatus(s.fake.RandomString(taskStatuses)),
		Priority:    models.Priority(s.fake.RandomString(priorities)),
		ProjectID:   p.ID,
	}
	if p.Deadline != nil {
		d := p.Deadline.AddDate(0, 0, -s.fake.Number(0, 10))
		task.Deadline = &d
	}
	return task
}
