package service

import (
	"context"
	"io"
	"log/slog"

	"barbershop-queue/internal/models"

	"github.com/stretchr/testify/mock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockStore struct{ mock.Mock }

func (m *mockStore) GetByID(ctx context.Context, id string) (*models.QueueEntry, error) {
	args := m.Called(ctx, id)
	e, _ := args.Get(0).(*models.QueueEntry)
	return e, args.Error(1)
}

func (m *mockStore) ActiveEntryForCustomer(ctx context.Context, customerID string) (*models.QueueEntry, error) {
	args := m.Called(ctx, customerID)
	e, _ := args.Get(0).(*models.QueueEntry)
	return e, args.Error(1)
}

func (m *mockStore) ActiveEntries(ctx context.Context, barberID string) ([]models.ActiveEntry, error) {
	args := m.Called(ctx, barberID)
	e, _ := args.Get(0).([]models.ActiveEntry)
	return e, args.Error(1)
}

func (m *mockStore) Create(ctx context.Context, e *models.QueueEntry, serviceIDs []string) error {
	return m.Called(ctx, e, serviceIDs).Error(0)
}

func (m *mockStore) Move(ctx context.Context, entryID string, dir models.Direction) (*models.QueueEntry, error) {
	args := m.Called(ctx, entryID, dir)
	e, _ := args.Get(0).(*models.QueueEntry)
	return e, args.Error(1)
}

func (m *mockStore) Cancel(ctx context.Context, entryID string) error {
	return m.Called(ctx, entryID).Error(0)
}

func (m *mockStore) RemoveService(ctx context.Context, entryID, serviceID string) error {
	return m.Called(ctx, entryID, serviceID).Error(0)
}

func (m *mockStore) Complete(ctx context.Context, h *models.HistoryEntry) error {
	return m.Called(ctx, h).Error(0)
}

type mockCatalog struct{ mock.Mock }

func (m *mockCatalog) BarberByID(ctx context.Context, id string) (*models.Barber, error) {
	args := m.Called(ctx, id)
	b, _ := args.Get(0).(*models.Barber)
	return b, args.Error(1)
}

func (m *mockCatalog) AvailableBarbers(ctx context.Context) ([]models.Barber, error) {
	args := m.Called(ctx)
	b, _ := args.Get(0).([]models.Barber)
	return b, args.Error(1)
}

func (m *mockCatalog) ServicesByIDs(ctx context.Context, ids []string) ([]models.Service, error) {
	args := m.Called(ctx, ids)
	s, _ := args.Get(0).([]models.Service)
	return s, args.Error(1)
}

func (m *mockCatalog) ListServices(ctx context.Context) ([]models.Service, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).([]models.Service)
	return s, args.Error(1)
}

func (m *mockCatalog) Settings(ctx context.Context) (models.Settings, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Settings), args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify() { m.Called() }

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishVisitCompleted(ctx context.Context, h *models.HistoryEntry) error {
	return m.Called(ctx, h).Error(0)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

type mockTokens struct{ mock.Mock }

func (m *mockTokens) GenerateToken(userID, name string, role models.Role) (string, error) {
	args := m.Called(userID, name, role)
	return args.String(0), args.Error(1)
}
