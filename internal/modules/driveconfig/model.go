// README: Drive configuration aggregate: reusable ordered task templates.
package driveconfig

import (
	"errors"
	"time"
)

var (
	ErrValidation = errors.New("invalid drive configuration request")
	ErrNotFound   = errors.New("drive configuration not found")
	// ErrConflict covers both delete guards (configuration still referenced)
	// and unique-order collisions on task set products.
	ErrConflict = errors.New("drive configuration conflict")
)

// DriveConfiguration is a reusable ordered template of tasks. Sessions copy
// from it at assignment time and are independent afterwards.
type DriveConfiguration struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	TasksRequired int       `json:"tasks_required"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TaskSet is one step of a configuration. Non-combo sets carry exactly one
// product at order_in_set = 1; combo sets carry exactly one product.
type TaskSet struct {
	ID                   int64     `json:"id"`
	DriveConfigurationID int64     `json:"drive_configuration_id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description,omitempty"`
	OrderInDrive         int       `json:"order_in_drive"`
	IsCombo              bool      `json:"is_combo"`
	CreatedAt            time.Time `json:"created_at"`
}

// TaskSetProduct links a product into a task set slot.
type TaskSetProduct struct {
	ID            int64  `json:"id"`
	TaskSetID     int64  `json:"task_set_id"`
	ProductID     int64  `json:"product_id"`
	OrderInSet    int    `json:"order_in_set"`
	PriceOverride *int64 `json:"price_override,omitempty"`
}
