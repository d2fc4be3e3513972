package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"barbershop-queue/internal/models"
)

// CatalogRepo serves the read-only lookups the queue needs: barbers, services and settings.
type CatalogRepo struct {
	db *sql.DB
}

func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

const barberColumns = `id, user_id, name, status, queue_status, created_at, updated_at`

func scanBarber(row interface{ Scan(...any) error }, b *models.Barber) error {
	return row.Scan(&b.ID, &b.UserID, &b.Name, &b.Status, &b.QueueStatus, &b.CreatedAt, &b.UpdatedAt)
}

func (r *CatalogRepo) BarberByID(ctx context.Context, id string) (*models.Barber, error) {
	const op = "repository.catalog.BarberByID"

	var b models.Barber
	err := scanBarber(r.db.QueryRowContext(ctx, `SELECT `+barberColumns+` FROM barbers WHERE id = ?`, id), &b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &b, nil
}

// AvailableBarbers lists barbers that are active and have their queue open.
func (r *CatalogRepo) AvailableBarbers(ctx context.Context) ([]models.Barber, error) {
	const op = "repository.catalog.AvailableBarbers"

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+barberColumns+` FROM barbers WHERE status = 'active' AND queue_status = 'open' ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	barbers := []models.Barber{}
	for rows.Next() {
		var b models.Barber
		if err := scanBarber(rows, &b); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		barbers = append(barbers, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return barbers, nil
}

const serviceColumns = `id, name, price_cents, duration_min, is_active, created_at, updated_at`

func scanService(row interface{ Scan(...any) error }, s *models.Service) error {
	return row.Scan(&s.ID, &s.Name, &s.PriceCents, &s.DurationMin, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
}

// ServicesByIDs returns the catalog rows for the given ids; unknown ids are simply absent.
func (r *CatalogRepo) ServicesByIDs(ctx context.Context, ids []string) ([]models.Service, error) {
	const op = "repository.catalog.ServicesByIDs"

	if len(ids) == 0 {
		return []models.Service{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	return collectServices(op, rows)
}

// ListServices returns the active catalog for the join form.
func (r *CatalogRepo) ListServices(ctx context.Context) ([]models.Service, error) {
	const op = "repository.catalog.ListServices"

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE is_active = 1 ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	return collectServices(op, rows)
}

func collectServices(op string, rows *sql.Rows) ([]models.Service, error) {
	services := []models.Service{}
	for rows.Next() {
		var s models.Service
		if err := scanService(rows, &s); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return services, nil
}

// Settings reads the single settings row. A missing row means no fees and no commission.
func (r *CatalogRepo) Settings(ctx context.Context) (models.Settings, error) {
	const op = "repository.catalog.Settings"

	var s models.Settings
	err := r.db.QueryRowContext(ctx, `
		SELECT pix_fee, debit_card_fee, credit_card_fee_1x, credit_card_fee_2x, credit_card_fee_3x, commission_rate
		FROM settings LIMIT 1`,
	).Scan(&s.PixFee, &s.DebitCardFee, &s.CreditCardFee1x, &s.CreditCardFee2x, &s.CreditCardFee3x, &s.CommissionRate)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Settings{}, nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}
