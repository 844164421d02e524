package models

import (
	"time"

	"gorm.io/datatypes"
)

// Priority is shared by projects and tasks.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ProjectStatus tracks a project's lifecycle.
type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "Planning"
	ProjectInProgress ProjectStatus = "In Progress"
	ProjectCompleted  ProjectStatus = "Completed"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanning, ProjectInProgress, ProjectCompleted:
		return true
	}
	return false
}

// Project is owned by the user in CreatedBy. Its task list is loaded from
// tasks.project_id and never stored on the project row.
type Project struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	Title       string                      `gorm:"not null" json:"title"`
	Description string                      `gorm:"type:text" json:"description"`
	StartDate   *time.Time                  `json:"startDate,omitempty"`
	Deadline    *time.Time                  `json:"deadline,omitempty"`
	Priority    Priority                    `gorm:"size:16;not null" json:"priority"`
	TeamMembers datatypes.JSONSlice[string] `json:"teamMembers"`
	Status      ProjectStatus               `gorm:"size:32;not null;index" json:"status"`
	CreatedBy   uint                        `gorm:"not null;index" json:"createdBy"`
	Tasks       []Task                      `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"tasks"`
	CreatedAt   time.Time                   `json:"createdAt"`
	UpdatedAt   time.Time                   `json:"updatedAt"`
}
