package command

import "time"

// Status is the lifecycle state of a queued command.
type Status string

const (
	// StatusPending means the command is waiting for the device to pick it up.
	StatusPending Status = "pending"

	// StatusProcessing means the device has acknowledged the command and is
	// executing it.
	StatusProcessing Status = "processing"

	// StatusCompleted means the device executed the command successfully.
	StatusCompleted Status = "completed"

	// StatusFailed means the device reported a failure executing the command.
	StatusFailed Status = "failed"
)

// IsValid returns true for a recognised status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true for statuses that end a command's lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Command is one control instruction queued for a device.
//
// Commands form a durable per-device FIFO: devices drain pending rows in
// creation order whenever they report in. Rows are never re-ordered or
// deleted on delivery; delivery is at-least-once and the device-side
// handler must tolerate seeing a command twice.
type Command struct {
	ID          int64      `json:"id"`
	DeviceID    string     `json:"device_id"`
	Name        string     `json:"command"`
	Value       string     `json:"value"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
