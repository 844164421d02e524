package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// TeamMembers decodes either a JSON array of names or a single comma-separated string.
type TeamMembers []string

func (t *TeamMembers) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = nil
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*t = splitMembers(raw)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.New("teamMembers must be an array or a comma-separated string")
	}
	out := make([]string, 0, len(list))
	for _, name := range list {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	*t = out
	return nil
}

func splitMembers(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Date accepts a calendar date (2006-01-02) or an RFC 3339 timestamp. An empty string
// decodes to the zero Date.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.New("dates must be strings")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return errors.New("invalid date: " + raw)
}

// Ptr returns nil for the zero Date.
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

// AssigneeUpdate records what a task update asks for its assignee. Absent leaves the
// assignee alone; null or 0 clears it; any other id reassigns the task.
type AssigneeUpdate struct {
	Set bool
	ID  *uint
}

func (a *AssigneeUpdate) UnmarshalJSON(data []byte) error {
	a.Set = true
	a.ID = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var id uint
	if err := json.Unmarshal(data, &id); err != nil {
		return errors.New("assignedTo must be a user id or null")
	}
	if id != 0 {
		a.ID = &id
	}
	return nil
}

// AssignTo reassigns the task to userID.
func AssignTo(userID uint) AssigneeUpdate {
	return AssigneeUpdate{Set: true, ID: &userID}
}

// Unassign clears the task's assignee.
func Unassign() AssigneeUpdate {
	return AssigneeUpdate{Set: true}
}
