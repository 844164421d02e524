package models

import "time"

// TaskStatus tracks a task's lifecycle.
type TaskStatus string

const (
	TaskNotStarted TaskStatus = "Not Started"
	TaskInProgress TaskStatus = "In Progress"
	TaskCompleted  TaskStatus = "Completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskNotStarted, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

// Task belongs to exactly one project.
type Task struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Status      TaskStatus `gorm:"size:32;not null;index" json:"status"`
	Priority    Priority   `gorm:"size:16;not null" json:"priority"`
	AssignedTo  *uint      `gorm:"index" json:"assignedTo,omitempty"`
	Assignee    *User      `gorm:"foreignKey:AssignedTo" json:"assignee,omitempty"`
	ProjectID   uint       `gorm:"not null;index" json:"project"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
