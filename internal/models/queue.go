package models

import (
	"time"
)

type QueueStatus string

const (
	StatusWaiting    QueueStatus = "waiting"
	StatusInProgress QueueStatus = "in_progress"
	StatusCompleted  QueueStatus = "completed"
	StatusCancelled  QueueStatus = "cancelled"
)

// ActiveStatuses are the statuses that occupy a slot in a barber's queue.
var ActiveStatuses = []QueueStatus{StatusWaiting, StatusInProgress}

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

type QueueEntry struct {
	ID         string      `json:"id"`
	CustomerID string      `json:"customer_id"`
	BarberID   string      `json:"barber_id"`
	Status     QueueStatus `json:"status"`
	Position   int64       `json:"position"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// QueueService - requested service on an entry, joined with the catalog row.
type QueueService struct {
	ServiceID   string `json:"service_id"`
	Name        string `json:"name"`
	PriceCents  int64  `json:"price_cents"`
	DurationMin int    `json:"duration_min"`
}

// ActiveEntry is an entry in waiting/in_progress together with what it requested.
type ActiveEntry struct {
	QueueEntry
	CustomerName string         `json:"customer_name"`
	Services     []QueueService `json:"services"`
}

func (e ActiveEntry) DurationMin() int {
	total := 0
	for _, s := range e.Services {
		total += s.DurationMin
	}
	return total
}

func (e ActiveEntry) PriceCents() int64 {
	var total int64
	for _, s := range e.Services {
		total += s.PriceCents
	}
	return total
}

/*
|--------------------------------------------------------------------------
| REQUEST
|--------------------------------------------------------------------------
*/
type JoinQueueRequest struct {
	ServiceIDs []string `json:"serviceIds" validate:"required,min=1,dive,required"`
	BarberID   string   `json:"barberId" validate:"required"`
}

type MoveQueueRequest struct {
	QueueID   string    `json:"queueId" validate:"required"`
	Direction Direction `json:"direction" validate:"required,oneof=up down"`
}

type CancelQueueRequest struct {
	QueueID string `json:"queueId"`
}

type RemoveServiceRequest struct {
	QueueID           string `json:"queueId" validate:"required"`
	ServiceIDToRemove string `json:"serviceIdToRemove" validate:"required"`
}

/*
|--------------------------------------------------------------------------
| RESPONSE
|--------------------------------------------------------------------------
*/

// QueueView is what a customer sees about their own place in line.
type QueueView struct {
	InQueue           bool             `json:"inQueue"`
	QueueID           string           `json:"queueId,omitempty"`
	BarberID          string           `json:"barberId,omitempty"`
	BarberName        string           `json:"barberName,omitempty"`
	Status            QueueStatus      `json:"status,omitempty"`
	Position          int              `json:"position,omitempty"`
	PeopleAhead       int              `json:"peopleAhead"`
	EstimatedWaitTime int              `json:"estimatedWaitTime"`
	TotalPrice        int64            `json:"totalPrice"`
	Services          []QueueService   `json:"services,omitempty"`
	Queue             []QueueViewEntry `json:"queue,omitempty"`
}

type QueueViewEntry struct {
	Position    int         `json:"position"`
	Label       string      `json:"label"`
	IsSelf      bool        `json:"isSelf"`
	Current     bool        `json:"current"`
	Status      QueueStatus `json:"status"`
	DurationMin int         `json:"durationMin"`
}

// BarberQueueEntry is the staff view of one active entry.
type BarberQueueEntry struct {
	QueueID           string         `json:"queueId"`
	Position          int            `json:"position"`
	CustomerID        string         `json:"customerId"`
	CustomerName      string         `json:"customerName"`
	Status            QueueStatus    `json:"status"`
	Current           bool           `json:"current"`
	Services          []QueueService `json:"services"`
	TotalPrice        int64          `json:"totalPrice"`
	EstimatedWaitTime int            `json:"estimatedWaitTime"`
	JoinedAt          time.Time      `json:"joinedAt"`
}

// SwapTarget finds id in an ordered list and returns its index together with the
// index of the neighbour it trades places with when moved in dir.
func SwapTarget(order []string, id string, dir Direction) (int, int, error) {
	if !dir.Valid() {
		return 0, 0, ErrInvalidDirection
	}

	idx := -1
	for i, v := range order {
		if v == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, 0, ErrNotFound
	}

	target := idx - 1
	if dir == DirectionDown {
		target = idx + 1
	}
	if target < 0 || target >= len(order) {
		return 0, 0, ErrInvalidDirection
	}

	return idx, target, nil
}
