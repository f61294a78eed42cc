package amqp

import (
	"encoding/json"
	"time"
)

const (
	RoutingDaySaved   = "day.saved"
	RoutingDayFlagged = "day.flagged"
)

// DaySavedMessage announces that a user's day changed. The worker reloads the
// day from storage, so only the key and the version travel on the wire.
type DaySavedMessage struct {
	UserID     string    `json:"user_id"`
	Date       string    `json:"date"`
	TotalHours float64   `json:"total_hours"`
	Version    int64     `json:"version,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewDaySavedMessage(userID, date string, totalHours float64, version int64) *DaySavedMessage {
	return &DaySavedMessage{
		UserID:     userID,
		Date:       date,
		TotalHours: totalHours,
		Version:    version,
		Timestamp:  time.Now(),
	}
}

func (m *DaySavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DaySavedMessageFromJSON(data []byte) (*DaySavedMessage, error) {
	var msg DaySavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DayFlaggedMessage is emitted by the audit worker for past days that are
// not fully distributed.
type DayFlaggedMessage struct {
	UserID        string    `json:"user_id"`
	Date          string    `json:"date"`
	Status        string    `json:"status"`
	Remaining     float64   `json:"remaining"`
	OverAllocated bool      `json:"over_allocated,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (m *DayFlaggedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DayFlaggedMessageFromJSON(data []byte) (*DayFlaggedMessage, error) {
	var msg DayFlaggedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
