package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// GameID identifies a catalog game. Sponsored games use slugs; RAWG games use numeric
// ids, which are written as JSON numbers. Either form is accepted on input.
type GameID string

func (id GameID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *GameID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = GameID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("gameId must be a string or a number")
	}
	*id = GameID(n.String())
	return nil
}

// Game is a catalog entry, either sponsored or reshaped from RAWG.
type Game struct {
	ID          GameID  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	CoverURL    string  `json:"coverUrl" yaml:"cover_url"`
	Released    string  `json:"released,omitempty" yaml:"released"`
	Rating      float64 `json:"rating,omitempty" yaml:"rating"`
	Description string  `json:"description" yaml:"description"`
	Price       float64 `json:"price,omitempty" yaml:"price"`
}

// Progress summarizes completion over a user's projects and tasks.
type Progress struct {
	Tasks    ProgressCount `json:"tasks"`
	Projects ProgressCount `json:"projects"`
}

// ProgressCount is a completed/total pair with its rounded percentage.
type ProgressCount struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Percent   int `json:"percent"`
}

// NewProgressCount computes the percentage; it is 0 when total is 0.
func NewProgressCount(completed, total int) ProgressCount {
	pc := ProgressCount{Total: total, Completed: completed}
	if total > 0 {
		pc.Percent = (completed*100 + total/2) / total
	}
	return pc
}

// AllModels lists every persisted model in migration order.
func AllModels() []any {
	return []any{
		&User{},
		&Profile{},
		&CartItem{},
		&Project{},
		&Task{},
		&Notification{},
	}
}
