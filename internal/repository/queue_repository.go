package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"barbershop-queue/internal/models"
)

// QueueRepo persists queue entries and their requested services. Every mutation that
// touches ordering runs in a transaction holding the barber row lock, so moves and joins
// on the same barber are serialized.
type QueueRepo struct {
	db *sql.DB
}

func NewQueueRepo(db *sql.DB) *QueueRepo { return &QueueRepo{db: db} }

const activeStatusList = "('waiting','in_progress')"

const entryColumns = `id, customer_id, barber_id, status, position, created_at, updated_at`

func scanEntry(row interface{ Scan(...any) error }, e *models.QueueEntry) error {
	return row.Scan(&e.ID, &e.CustomerID, &e.BarberID, &e.Status, &e.Position, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns a single entry regardless of status.
func (r *QueueRepo) GetByID(ctx context.Context, id string) (*models.QueueEntry, error) {
	const op = "repository.queue.GetByID"

	var e models.QueueEntry
	err := scanEntry(r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM queues WHERE id = ?`, id), &e)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &e, nil
}

// ActiveEntryForCustomer returns the customer's waiting or in-progress entry, or ErrNotInQueue.
func (r *QueueRepo) ActiveEntryForCustomer(ctx context.Context, customerID string) (*models.QueueEntry, error) {
	const op = "repository.queue.ActiveEntryForCustomer"

	query := `SELECT ` + entryColumns + ` FROM queues
		WHERE customer_id = ? AND status IN ` + activeStatusList + `
		ORDER BY position ASC LIMIT 1`

	var e models.QueueEntry
	err := scanEntry(r.db.QueryRowContext(ctx, query, customerID), &e)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotInQueue)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &e, nil
}

// ActiveEntries lists a barber's waiting and in-progress entries in queue order,
// each with the services it requested.
func (r *QueueRepo) ActiveEntries(ctx context.Context, barberID string) ([]models.ActiveEntry, error) {
	const op = "repository.queue.ActiveEntries"

	query := `
		SELECT q.id, q.customer_id, q.barber_id, q.status, q.position, q.created_at, q.updated_at, u.name
		FROM queues q
		JOIN users u ON u.id = q.customer_id
		WHERE q.barber_id = ? AND q.status IN ` + activeStatusList + `
		ORDER BY q.position ASC`

	rows, err := r.db.QueryContext(ctx, query, barberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var entries []models.ActiveEntry
	index := make(map[string]int)
	for rows.Next() {
		var e models.ActiveEntry
		if err := rows.Scan(
			&e.ID, &e.CustomerID, &e.BarberID, &e.Status, &e.Position,
			&e.CreatedAt, &e.UpdatedAt, &e.CustomerName,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		index[e.ID] = len(entries)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(entries) == 0 {
		return entries, nil
	}

	svcQuery := `
		SELECT qs.queue_id, s.id, s.name, s.price_cents, s.duration_min
		FROM queue_services qs
		JOIN services s ON s.id = qs.service_id
		JOIN queues q ON q.id = qs.queue_id
		WHERE q.barber_id = ? AND q.status IN ` + activeStatusList + `
		ORDER BY s.name ASC`

	svcRows, err := r.db.QueryContext(ctx, svcQuery, barberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer svcRows.Close()

	for svcRows.Next() {
		var queueID string
		var s models.QueueService
		if err := svcRows.Scan(&queueID, &s.ServiceID, &s.Name, &s.PriceCents, &s.DurationMin); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		// an entry that changed status between the two queries is simply skipped
		if i, ok := index[queueID]; ok {
			entries[i].Services = append(entries[i].Services, s)
		}
	}
	if err := svcRows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}

// Create inserts a waiting entry at the tail of the barber's queue together with one
// queue_services row per requested service. The barber row is locked for the duration
// so positions stay unique, and the customer's active rows are locked to enforce the
// single-active-entry rule.
func (r *QueueRepo) Create(ctx context.Context, e *models.QueueEntry, serviceIDs []string) error {
	const op = "repository.queue.Create"

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	barber, err := lockBarber(ctx, tx, e.BarberID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !barber.AcceptsCustomers() {
		return fmt.Errorf("%s: %w", op, models.ErrBarberUnavailable)
	}

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queues WHERE customer_id = ? AND status IN `+activeStatusList+` FOR UPDATE`,
		e.CustomerID,
	).Scan(&active)
	if err != nil {
		return fmt.Errorf("%s: count active: %w", op, err)
	}
	if active > 0 {
		return fmt.Errorf("%s: %w", op, models.ErrAlreadyInQueue)
	}

	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM queues WHERE barber_id = ?`,
		e.BarberID,
	).Scan(&e.Position)
	if err != nil {
		return fmt.Errorf("%s: next position: %w", op, err)
	}

	e.Status = models.StatusWaiting
	_, err = tx.ExecContext(ctx,
		`INSERT INTO queues (id, customer_id, barber_id, status, position, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CustomerID, e.BarberID, e.Status, e.Position, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: insert entry: %w", op, err)
	}

	query := `INSERT INTO queue_services (queue_id, service_id) VALUES `
	args := make([]interface{}, 0, len(serviceIDs)*2)
	for i, sid := range serviceIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, e.ID, sid)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: insert services: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

// Move swaps the position of a waiting entry with its neighbour among the barber's
// waiting entries. It returns the moved entry with its new position.
func (r *QueueRepo) Move(ctx context.Context, entryID string, dir models.Direction) (*models.QueueEntry, error) {
	const op = "repository.queue.Move"

	if !dir.Valid() {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidDirection)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	var barberID string
	var status models.QueueStatus
	err = tx.QueryRowContext(ctx, `SELECT barber_id, status FROM queues WHERE id = ?`, entryID).Scan(&barberID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: load entry: %w", op, err)
	}
	if status != models.StatusWaiting {
		return nil, fmt.Errorf("%s: entry is %s: %w", op, status, models.ErrNotFound)
	}

	if _, err := lockBarber(ctx, tx, barberID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM queues WHERE barber_id = ? AND status = 'waiting' ORDER BY position ASC FOR UPDATE`,
		barberID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: load waiting: %w", op, err)
	}
	var waiting []models.QueueEntry
	for rows.Next() {
		var e models.QueueEntry
		if err := scanEntry(rows, &e); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		waiting = append(waiting, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	order := make([]string, len(waiting))
	for i, e := range waiting {
		order[i] = e.ID
	}
	i, j, err := models.SwapTarget(order, entryID, dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	moved, other := waiting[i], waiting[j]
	if _, err := tx.ExecContext(ctx, `UPDATE queues SET position = ? WHERE id = ?`, other.Position, moved.ID); err != nil {
		return nil, fmt.Errorf("%s: update moved: %w", op, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE queues SET position = ? WHERE id = ?`, moved.Position, other.ID); err != nil {
		return nil, fmt.Errorf("%s: update neighbour: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	moved.Position = other.Position
	return &moved, nil
}

// Cancel moves a waiting entry to cancelled.
func (r *QueueRepo) Cancel(ctx context.Context, entryID string) error {
	const op = "repository.queue.Cancel"

	res, err := r.db.ExecContext(ctx,
		`UPDATE queues SET status = 'cancelled', updated_at = CURRENT_TIMESTAMP(3) WHERE id = ? AND status = 'waiting'`,
		entryID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotInQueue)
	}
	return nil
}

// RemoveService drops one requested service from a waiting entry, refusing to remove the last one.
func (r *QueueRepo) RemoveService(ctx context.Context, entryID, serviceID string) error {
	const op = "repository.queue.RemoveService"

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	var status models.QueueStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM queues WHERE id = ? FOR UPDATE`, entryID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: load entry: %w", op, err)
	}
	if status != models.StatusWaiting {
		return fmt.Errorf("%s: entry is %s: %w", op, status, models.ErrNotInQueue)
	}

	rows, err := tx.QueryContext(ctx, `SELECT service_id FROM queue_services WHERE queue_id = ?`, entryID)
	if err != nil {
		return fmt.Errorf("%s: load services: %w", op, err)
	}
	var linked []string
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			rows.Close()
			return fmt.Errorf("%s: %w", op, err)
		}
		linked = append(linked, sid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	found := false
	for _, sid := range linked {
		if sid == serviceID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%s: service %s: %w", op, serviceID, models.ErrNotFound)
	}
	if len(linked) <= 1 {
		return fmt.Errorf("%s: %w", op, models.ErrCannotRemoveLastService)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM queue_services WHERE queue_id = ? AND service_id = ?`, entryID, serviceID,
	); err != nil {
		return fmt.Errorf("%s: delete: %w", op, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE queues SET updated_at = CURRENT_TIMESTAMP(3) WHERE id = ?`, entryID,
	); err != nil {
		return fmt.Errorf("%s: touch entry: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

// Complete closes an active entry and records the visit: entry status, history row,
// history services, history items and stock decrements commit together or not at all.
// CustomerID and BarberID on h are filled from the locked entry.
func (r *QueueRepo) Complete(ctx context.Context, h *models.HistoryEntry) error {
	const op = "repository.queue.Complete"

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	var status models.QueueStatus
	err = tx.QueryRowContext(ctx,
		`SELECT customer_id, barber_id, status FROM queues WHERE id = ? FOR UPDATE`, h.QueueID,
	).Scan(&h.CustomerID, &h.BarberID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: load entry: %w", op, err)
	}
	if status != models.StatusWaiting && status != models.StatusInProgress {
		return fmt.Errorf("%s: entry is %s: %w", op, status, models.ErrNotInQueue)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE queues SET status = 'completed', updated_at = CURRENT_TIMESTAMP(3) WHERE id = ?`, h.QueueID,
	); err != nil {
		return fmt.Errorf("%s: update entry: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO history (id, queue_id, customer_id, barber_id, total_cents, payment_method, installments,
			fee_rate, fee_cents, net_cents, commission_rate, commission_cents, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.QueueID, h.CustomerID, h.BarberID, h.TotalCents, h.PaymentMethod, h.Installments,
		h.FeeRate, h.FeeCents, h.NetCents, h.CommissionRate, h.CommissionCents, h.CreatedAt,
	); err != nil {
		return fmt.Errorf("%s: insert history: %w", op, err)
	}

	if len(h.Services) > 0 {
		var sb strings.Builder
		sb.WriteString(`INSERT INTO history_services (history_id, service_id, name, price_cents) VALUES `)
		args := make([]interface{}, 0, len(h.Services)*4)
		for i, s := range h.Services {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString("(?, ?, ?, ?)")
			args = append(args, h.ID, s.ServiceID, s.Name, s.PriceCents)
		}
		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("%s: insert history services: %w", op, err)
		}
	}

	for _, item := range h.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO history_items (history_id, product_id, quantity, price_cents, total_cents) VALUES (?, ?, ?, ?, ?)`,
			h.ID, item.ProductID, item.Quantity, item.PriceCents, item.TotalCents,
		); err != nil {
			return fmt.Errorf("%s: insert history item: %w", op, err)
		}
		if err := decrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

// decrementStock only succeeds when enough stock is left, so quantities never go negative.
func decrementStock(ctx context.Context, tx *sql.Tx, productID string, qty int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?`, qty, productID, qty,
	)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE id = ?`, productID).Scan(&exists); err != nil {
		return fmt.Errorf("check product: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("product %s: %w", productID, models.ErrNotFound)
	}
	return fmt.Errorf("product %s: %w", productID, models.ErrInsufficientStock)
}

// lockBarber takes the barber row lock and returns the barber's state as seen under it.
func lockBarber(ctx context.Context, tx *sql.Tx, barberID string) (models.Barber, error) {
	b := models.Barber{ID: barberID}
	err := tx.QueryRowContext(ctx,
		`SELECT status, queue_status FROM barbers WHERE id = ? FOR UPDATE`, barberID,
	).Scan(&b.Status, &b.QueueStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return b, fmt.Errorf("lock barber %s: %w", barberID, models.ErrNotFound)
	}
	if err != nil {
		return b, fmt.Errorf("lock barber: %w", err)
	}
	return b, nil
}
