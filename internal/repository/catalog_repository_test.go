package repository

import (
	"context"
	"testing"
	"time"

	"barbershop-queue/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var serviceCols = []string{"id", "name", "price_cents", "duration_min", "is_active", "created_at", "updated_at"}

func TestCatalogRepo_ServicesByIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(q("FROM services WHERE id IN (?,?)")).
		WithArgs("cut", "beard").
		WillReturnRows(sqlmock.NewRows(serviceCols).
			AddRow("cut", "Cut", 2500, 30, true, now, now).
			AddRow("beard", "Beard", 1500, 15, true, now, now))

	services, err := NewCatalogRepo(db).ServicesByIDs(context.Background(), []string{"cut", "beard"})

	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, int64(2500), services[0].PriceCents)
	assert.Equal(t, 15, services[1].DurationMin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepo_ServicesByIDs_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	services, err := NewCatalogRepo(db).ServicesByIDs(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, services)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepo_BarberByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(q("FROM barbers WHERE id = ?")).
		WithArgs("b9").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = NewCatalogRepo(db).BarberByID(context.Background(), "b9")

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCatalogRepo_Settings(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(q("FROM settings LIMIT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e", "f"}).
			AddRow([]byte("0.01000"), []byte("0.02000"), []byte("0.03000"), []byte("0.04500"), []byte("0.06000"), []byte("0.50000")))

	s, err := NewCatalogRepo(db).Settings(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0.045, s.CreditCardFee2x)
	assert.Equal(t, 0.5, s.CommissionRate)
}

func TestCatalogRepo_Settings_MissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(q("FROM settings LIMIT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e", "f"}))

	s, err := NewCatalogRepo(db).Settings(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.Settings{}, s)
}
