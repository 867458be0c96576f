package notify

import (
	"fmt"
	"time"

	"github.com/aretimiss/queuematic/internal/models"
)

// NearThreshold is the position at or below which a visitor's turn counts as
// near.
const NearThreshold = 5

// DedupState tracks which qualifying conditions have already been alerted on.
// It lives in memory only; a restart may re-alert once, which is accepted.
type DedupState struct {
	// PositionAlerted is set while an alert for the current unbroken run of
	// position <= NearThreshold has fired.
	PositionAlerted bool
	// LastDepartment is the next-department value most recently alerted on.
	LastDepartment string
}

// Decide is a pure function from the previous dedup state and a fresh
// snapshot to the next dedup state and at most one alert. Feeding it the same
// snapshot twice with its own output state emits nothing the second time.
func Decide(state DedupState, snap models.QueueStatusSnapshot) (DedupState, *models.AlertEvent) {
	next := state

	// The position run breaks once the distance is unknown or back above the
	// threshold; a later crossing may alert again.
	if !snap.Position.Known || snap.Position.Value > NearThreshold {
		next.PositionAlerted = false
	}

	if snap.NextDepartment.Present() && snap.NextDepartment.Value != state.LastDepartment {
		next.LastDepartment = snap.NextDepartment.Value
		return next, departmentAlert(snap.NextDepartment.Value)
	}

	if snap.Position.Known && snap.Position.Value <= NearThreshold && !next.PositionAlerted {
		next.PositionAlerted = true
		return next, positionAlert(snap.Position.Value)
	}

	return next, nil
}

func positionAlert(position int) *models.AlertEvent {
	return &models.AlertEvent{
		Kind:     models.AlertPositionNear,
		Title:    "Almost your turn!",
		Message:  fmt.Sprintf("Only %d queues ahead of you. Please get ready.", position),
		Position: position,
		At:       time.Now().UTC(),
	}
}

func departmentAlert(department string) *models.AlertEvent {
	return &models.AlertEvent{
		Kind:       models.AlertDepartmentChange,
		Title:      "Department update",
		Message:    fmt.Sprintf("Please proceed to %s next.", department),
		Department: department,
		At:         time.Now().UTC(),
	}
}
