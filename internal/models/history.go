package models

import "time"

type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "cash"
	PaymentPix        PaymentMethod = "pix"
	PaymentDebitCard  PaymentMethod = "debit_card"
	PaymentCreditCard PaymentMethod = "credit_card"
)

const MaxInstallments = 3

// HistoryEntry is written once, when a queue entry completes, and never updated.
type HistoryEntry struct {
	ID              string           `json:"id"`
	QueueID         string           `json:"queue_id"`
	CustomerID      string           `json:"customer_id"`
	BarberID        string           `json:"barber_id"`
	TotalCents      int64            `json:"total_cents"`
	PaymentMethod   PaymentMethod    `json:"payment_method"`
	Installments    int              `json:"installments"`
	FeeRate         float64          `json:"fee_rate"`
	FeeCents        int64            `json:"fee_cents"`
	NetCents        int64            `json:"net_cents"`
	CommissionRate  float64          `json:"commission_rate"`
	CommissionCents int64            `json:"commission_cents"`
	CreatedAt       time.Time        `json:"created_at"`
	Services        []HistoryService `json:"services"`
	Items           []HistoryItem    `json:"items"`
}

type HistoryService struct {
	ServiceID  *string `json:"service_id"`
	Name       string  `json:"name"`
	PriceCents int64   `json:"price_cents"`
}

type HistoryItem struct {
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
	TotalCents int64  `json:"total_cents"`
}

/*
|--------------------------------------------------------------------------
| REQUEST
|--------------------------------------------------------------------------
*/
type CompleteQueueRequest struct {
	QueueID       string             `json:"queueId" validate:"required"`
	Services      []CompletedService `json:"services" validate:"dive"`
	Products      []ConsumedProduct  `json:"products" validate:"dive"`
	ExtraServices []ExtraService     `json:"extraServices" validate:"dive"`
	PaymentMethod PaymentMethod      `json:"paymentMethod" validate:"required,oneof=cash pix debit_card credit_card"`
	Installments  int                `json:"installments" validate:"omitempty,min=1,max=3"`
}

type CompletedService struct {
	ServiceID  string `json:"serviceId" validate:"required"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price" validate:"min=0"`
}

type ConsumedProduct struct {
	ProductID  string `json:"productId" validate:"required"`
	Quantity   int    `json:"quantity" validate:"min=1"`
	PriceCents int64  `json:"price" validate:"min=0"`
}

type ExtraService struct {
	ServiceID  string `json:"serviceId"`
	Name       string `json:"name" validate:"required"`
	Quantity   int    `json:"quantity" validate:"min=1"`
	PriceCents int64  `json:"price" validate:"min=0"`
}
