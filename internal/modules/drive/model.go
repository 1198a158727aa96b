// README: Drive session aggregate and status definitions.
package drive

import (
	"errors"
	"time"
)

type Status string

const (
	StatusActive       Status = "active"
	StatusFrozen       Status = "frozen"
	StatusPendingReset Status = "pending_reset"
	StatusCompleted    Status = "completed"
)

type ItemStatus string

const (
	ItemPending   ItemStatus = "PENDING"
	ItemCurrent   ItemStatus = "CURRENT"
	ItemCompleted ItemStatus = "COMPLETED"
)

type TaskType string

const (
	TaskOrder      TaskType = "order"
	TaskComboOrder TaskType = "combo_order"
)

var (
	ErrNotFound      = errors.New("drive session not found")
	ErrValidation    = errors.New("invalid drive request")
	ErrActiveSession = errors.New("user already has an active drive session")
	ErrSessionClosed = errors.New("drive session is not active")
	ErrInvalidState  = errors.New("invalid session status transition")
	// ErrConflict is returned when a concurrent writer won an order slot;
	// the request can be retried.
	ErrConflict = errors.New("drive session conflict")
)

// DriveSession is one user's run through a configuration. It owns a private
// copy of the task items; later edits to the configuration never reach it.
type DriveSession struct {
	ID                   int64      `json:"id"`
	UserID               int64      `json:"user_id"`
	DriveConfigurationID int64      `json:"drive_configuration_id"`
	Status               Status     `json:"status"`
	TasksRequired        int        `json:"tasks_required"`
	CurrentItemID        *int64     `json:"current_user_active_drive_item_id,omitempty"`
	StartedAt            time.Time  `json:"started_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// ActiveDriveItem is one task inside a session. Slots 2 and 3 are optional
// add-on products on the same task.
type ActiveDriveItem struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	DriveSessionID int64      `json:"drive_session_id"`
	ProductID1     int64      `json:"product_id_1"`
	ProductID2     *int64     `json:"product_id_2,omitempty"`
	ProductID3     *int64     `json:"product_id_3,omitempty"`
	OrderInDrive   int        `json:"order_in_drive"`
	UserStatus     ItemStatus `json:"user_status"`
	TaskType       TaskType   `json:"task_type"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// AllowedTransitions represents the session state flow (diagram) as code.
var AllowedTransitions = map[Status][]Status{
	StatusActive:       {StatusFrozen, StatusPendingReset, StatusCompleted},
	StatusFrozen:       {StatusActive},
	StatusPendingReset: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
