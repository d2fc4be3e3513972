package handler

import (
	"context"
	"io"
	"log/slog"

	"barbershop-queue/internal/models"

	"github.com/stretchr/testify/mock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockQueue struct{ mock.Mock }

func (m *mockQueue) Join(ctx context.Context, caller models.Caller, barberID string, serviceIDs []string) (*models.QueueEntry, error) {
	args := m.Called(ctx, caller, barberID, serviceIDs)
	e, _ := args.Get(0).(*models.QueueEntry)
	return e, args.Error(1)
}

func (m *mockQueue) Status(ctx context.Context, caller models.Caller) (*models.QueueView, error) {
	args := m.Called(ctx, caller)
	v, _ := args.Get(0).(*models.QueueView)
	return v, args.Error(1)
}

func (m *mockQueue) Move(ctx context.Context, caller models.Caller, entryID string, dir models.Direction) error {
	return m.Called(ctx, caller, entryID, dir).Error(0)
}

func (m *mockQueue) Cancel(ctx context.Context, caller models.Caller, entryID string) error {
	return m.Called(ctx, caller, entryID).Error(0)
}

func (m *mockQueue) Complete(ctx context.Context, caller models.Caller, req models.CompleteQueueRequest) (string, error) {
	args := m.Called(ctx, caller, req)
	return args.String(0), args.Error(1)
}

func (m *mockQueue) RemoveService(ctx context.Context, caller models.Caller, entryID, serviceID string) error {
	return m.Called(ctx, caller, entryID, serviceID).Error(0)
}

func (m *mockQueue) BarberQueue(ctx context.Context, caller models.Caller, barberID string) ([]models.BarberQueueEntry, error) {
	args := m.Called(ctx, caller, barberID)
	v, _ := args.Get(0).([]models.BarberQueueEntry)
	return v, args.Error(1)
}

func (m *mockQueue) AvailableBarbers(ctx context.Context) ([]models.Barber, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]models.Barber)
	return v, args.Error(1)
}

func (m *mockQueue) Services(ctx context.Context) ([]models.Service, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]models.Service)
	return v, args.Error(1)
}

type mockAuth struct{ mock.Mock }

func (m *mockAuth) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	args := m.Called(ctx, email, password)
	v, _ := args.Get(0).(*models.LoginResponse)
	return v, args.Error(1)
}
