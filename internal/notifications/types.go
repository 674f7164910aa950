package notifications

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a log record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("notification record not found")
	// ErrAlreadyCompleted is returned when a record has already received its
	// final delivery counts.
	ErrAlreadyCompleted = errors.New("notification record already completed")
)

// Record is one persisted inbound event and its delivery outcome.
type Record struct {
	ID           string     `json:"id"`
	EventType    string     `json:"eventType"`
	FileName     string     `json:"fileName"`
	FileID       string     `json:"fileId"`
	Recipients   []string   `json:"recipients"`
	Status       Status     `json:"status"`
	SuccessCount int        `json:"successCount"`
	FailedCount  int        `json:"failedCount"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// NewRecord holds the fields supplied when a record is created. Status and
// counts are always initialised by the store.
type NewRecord struct {
	EventType  string
	FileName   string
	FileID     string
	Recipients []string
}

// Statistics aggregates the whole log.
type Statistics struct {
	TotalNotifications int            `json:"totalNotifications"`
	Pending            int            `json:"pending"`
	Completed          int            `json:"completed"`
	TotalSent          int            `json:"totalSent"`
	TotalFailed        int            `json:"totalFailed"`
	SuccessRate        float64        `json:"successRate"`
	Last24Hours        int            `json:"last24Hours"`
	ByEventType        map[string]int `json:"byEventType"`
}
