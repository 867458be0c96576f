package models

import "time"

type Ticket struct {
	ID             string    `json:"id"`
	IDCardNumber   string    `json:"id_card_number"`
	QueueNumber    int       `json:"queue_number"`
	Status         string    `json:"status"`
	Department     TextField `json:"department,omitzero"`
	NextDepartment TextField `json:"next_department,omitzero"`
	CreatedAt      time.Time `json:"created_at"`
}

const (
	StatusWaiting     = "waiting"
	StatusProcessing  = "processing"
	StatusTransferred = "transferred"
	StatusCompleted   = "completed"
	StatusCancelled   = "cancelled"
)

// ActiveStatuses are the statuses under which an existing ticket is adopted
// instead of registering a duplicate for the same ID card.
var ActiveStatuses = []string{StatusWaiting, StatusProcessing, StatusTransferred}

func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}

func IsActiveStatus(status string) bool {
	for _, s := range ActiveStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func IsValidStatus(status string) bool {
	switch status {
	case StatusWaiting, StatusProcessing, StatusTransferred, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// QueueStatusSnapshot is one poll's read of the authority state. It is never
// persisted; mutable ticket fields are merged from it after each poll.
type QueueStatusSnapshot struct {
	CurrentQueueNumber   int       `json:"current_queue_number"`
	Position             IntField  `json:"position,omitzero"`
	WaitingCount         int       `json:"waiting_count"`
	EstimatedTimeMinutes int       `json:"estimated_time_minutes"`
	Department           TextField `json:"department,omitzero"`
	NextDepartment       TextField `json:"next_department,omitzero"`
	FetchedAt            time.Time `json:"fetched_at"`
}

// Clamp forces a reported position to be non-negative. The authority is
// inconsistent about already-served tickets, so a negative distance reads as 0.
func (s *QueueStatusSnapshot) Clamp() {
	if s.Position.Known && s.Position.Value < 0 {
		s.Position.Value = 0
	}
}

type NotificationPreference struct {
	SoundEnabled             bool `json:"sound_enabled"`
	BrowserPermissionGranted bool `json:"browser_permission_granted"`
}

func DefaultPreference() NotificationPreference {
	return NotificationPreference{SoundEnabled: true}
}

const (
	AlertPositionNear     = "position_near"
	AlertDepartmentChange = "department_change"
)

type AlertEvent struct {
	Kind       string    `json:"kind"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Position   int       `json:"position,omitempty"`
	Department string    `json:"department,omitempty"`
	At         time.Time `json:"at"`
}
