package models

import "time"

const (
	BarberActive   = "active"
	BarberInactive = "inactive"

	QueueOpen   = "open"
	QueueClosed = "closed"
)

type Barber struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`       // active, inactive
	QueueStatus string    `json:"queue_status"` // open, closed
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AcceptsCustomers reports whether new entries may join this barber's queue.
func (b Barber) AcceptsCustomers() bool {
	return b.Status == BarberActive && b.QueueStatus == QueueOpen
}
