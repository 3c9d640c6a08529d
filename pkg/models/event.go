package models

import (
	"encoding/json"
	"time"
)

// Event is one entry of the /rest/events long-poll response.
type Event struct {
	ID       int             `json:"id"`
	GlobalID int             `json:"globalID"`
	Type     string          `json:"type"`
	Time     time.Time       `json:"time"`
	Data     json.RawMessage `json:"data"`
}

// Folder returns the folder ID carried in the event data, if any.
func (e Event) Folder() string {
	var d struct {
		Folder string `json:"folder"`
	}
	if json.Unmarshal(e.Data, &d) == nil {
		return d.Folder
	}
	return ""
}
