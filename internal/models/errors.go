package models

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
)

var (
	ErrAlreadyInQueue          = errors.New("customer already has an active queue entry")
	ErrBarberUnavailable       = errors.New("barber is not accepting new customers")
	ErrInvalidServices         = errors.New("one or more services are invalid")
	ErrNotInQueue              = errors.New("customer is not in queue")
	ErrInvalidDirection        = errors.New("entry cannot be moved in that direction")
	ErrCannotRemoveLastService = errors.New("cannot remove the last service of an entry")
	ErrInsufficientStock       = errors.New("insufficient product stock")
	ErrInvalidPayment          = errors.New("invalid payment method or installments")
)
