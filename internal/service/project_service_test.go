package service

import (
	"context"
	"encoding/json"
	"testing"

	"keystone/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectService_CreateDefaults(t *testing.T) {
	env := newTestEnv(t, "")
	svc := NewProjectService(env.projects, env.notifier)
	owner := env.user(t, "owner")

	p, err := svc.Create(context.Background(), CreateProjectInput{OwnerID: owner.ID, Title: "Launch"})
	require.NoError(t, err)
	assert.Equal(t, models.PriorityMedium, p.Priority)
	assert.Equal(t, models.ProjectPlanning, p.Status)
	assert.Equal(t, owner.ID, p.CreatedBy)
	assert.NotNil(t, p.Tasks)
	assert.Empty(t, p.TeamMembers)

	_, err = svc.Create(context.Background(), CreateProjectInput{OwnerID: owner.ID, Title: "  "})
	assert.Equal(t, 400, models.StatusFor(err))

	_, err = svc.Create(context.Background(), CreateProjectInput{OwnerID: owner.ID, Title: "x", Priority: "Urgent"})
	assert.Equal(t, 400, models.StatusFor(err))
}

func TestProjectService_UpdateCompletionNotifiesOwner(t *testing.T) {
	env := newTestEnv(t, "")
	svc := NewProjectService(env.projects, env.notifier)
	owner := env.user(t, "owner")
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateProjectInput{OwnerID: owner.ID, Title: "Launch"})
	require.NoError(t, err)

	inProgress := string(models.ProjectInProgress)
	_, err = svc.Update(ctx, UpdateProjectInput{OwnerID: owner.ID, ProjectID: p.ID, Status: &inProgress})
	require.NoError(t, err)
	assert.Zero(t, env.publisher.count())

	completed := string(models.ProjectCompleted)
	members := []string{"Ann", "Ben"}
	updated, err := svc.Update(ctx, UpdateProjectInput{OwnerID: owner.ID, ProjectID: p.ID, Status: &completed, TeamMembers: &members})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectCompleted, updated.Status)
	assert.Equal(t, []string{"Ann", "Ben"}, []string(updated.TeamMembers))
	assert.Equal(t, "Launch", updated.Title)

	inbox, err := env.notifier.List(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Project completed", inbox[0].Title)
	assert.Equal(t, 1, env.publisher.count())

	// Saving Completed again does not notify twice.
	_, err = svc.Update(ctx, UpdateProjectInput{OwnerID: owner.ID, ProjectID: p.ID, Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, 1, env.publisher.count())
}

func TestProjectService_NotificationsFlagOff(t *testing.T) {
	env := newTestEnv(t, "task_notifications=off")
	svc := NewProjectService(env.projects, env.notifier)
	owner := env.user(t, "owner")
	ctx := context.Background()

	completed := string(models.ProjectCompleted)
	p, err := svc.Create(ctx, CreateProjectInput{OwnerID: owner.ID, Title: "Launch"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, UpdateProjectInput{OwnerID: owner.ID, ProjectID: p.ID, Status: &completed})
	require.NoError(t, err)

	inbox, err := env.notifier.List(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, inbox)
}

func TestProjectService_OwnerScoping(t *testing.T) {
	env := newTestEnv(t, "")
	svc := NewProjectService(env.projects, env.notifier)
	owner := env.user(t, "owner")
	other := env.user(t, "other")
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateProjectInput{OwnerID: owner.ID, Title: "Launch"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, p.ID, other.ID)
	assert.Equal(t, 404, models.StatusFor(err))

	title := "Stolen"
	_, err = svc.Update(ctx, UpdateProjectInput{OwnerID: other.ID, ProjectID: p.ID, Title: &title})
	assert.Equal(t, 404, models.StatusFor(err))

	assert.Equal(t, 404, models.StatusFor(svc.Delete(ctx, p.ID, other.ID)))
	require.NoError(t, svc.Delete(ctx, p.ID, owner.ID))
}

func TestTeamMembers_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"array", `["Ann"," Ben ",""]`, []string{"Ann", "Ben"}},
		{"comma string", `"Ann, Ben,,Cy"`, []string{"Ann", "Ben", "Cy"}},
		{"empty string", `""`, []string{}},
		{"null", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got TeamMembers
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, []string(got))
		})
	}

	var bad TeamMembers
	assert.Error(t, json.Unmarshal([]byte(`42`), &bad))
}

func TestDate_UnmarshalJSON(t *testing.T) {
	var d struct {
		Deadline Date `json:"deadline"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"deadline":"2026-03-01"}`), &d))
	require.NotNil(t, d.Deadline.Ptr())
	assert.Equal(t, "2026-03-01", d.Deadline.Format("2006-01-02"))

	require.NoError(t, json.Unmarshal([]byte(`{"deadline":"2026-03-01T10:00:00+02:00"}`), &d))
	assert.Equal(t, 8, d.Deadline.Hour())

	var empty struct {
		Deadline Date `json:"deadline"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"deadline":""}`), &empty))
	assert.Nil(t, empty.Deadline.Ptr())

	assert.Error(t, json.Unmarshal([]byte(`{"deadline":"next week"}`), &d))
}

func TestAssigneeUpdate_UnmarshalJSON(t *testing.T) {
	seven := uint(7)
	tests := []struct {
		name string
		in   string
		want AssigneeUpdate
	}{
		{"absent", `{}`, AssigneeUpdate{}},
		{"null clears", `{"assignedTo":null}`, AssigneeUpdate{Set: true}},
		{"zero clears", `{"assignedTo":0}`, AssigneeUpdate{Set: true}},
		{"id assigns", `{"assignedTo":7}`, AssigneeUpdate{Set: true, ID: &seven}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got struct {
				AssignedTo AssigneeUpdate `json:"assignedTo"`
			}
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got.AssignedTo)
		})
	}

	var bad struct {
		AssignedTo AssigneeUpdate `json:"assignedTo"`
	}
	assert.EqualError(t, json.Unmarshal([]byte(`{"assignedTo":"bob"}`), &bad), "assignedTo must be a user id or null")
	assert.Error(t, json.Unmarshal([]byte(`{"assignedTo":-1}`), &bad))
}
