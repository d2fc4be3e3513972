package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"barbershop-queue/internal/lib/logger/sl"
	"barbershop-queue/internal/models"

	"github.com/google/uuid"
)

type QueueStore interface {
	GetByID(ctx context.Context, id string) (*models.QueueEntry, error)
	ActiveEntryForCustomer(ctx context.Context, customerID string) (*models.QueueEntry, error)
	ActiveEntries(ctx context.Context, barberID string) ([]models.ActiveEntry, error)
	Create(ctx context.Context, e *models.QueueEntry, serviceIDs []string) error
	Move(ctx context.Context, entryID string, dir models.Direction) (*models.QueueEntry, error)
	Cancel(ctx context.Context, entryID string) error
	RemoveService(ctx context.Context, entryID, serviceID string) error
	Complete(ctx context.Context, h *models.HistoryEntry) error
}

type Catalog interface {
	BarberByID(ctx context.Context, id string) (*models.Barber, error)
	AvailableBarbers(ctx context.Context) ([]models.Barber, error)
	ServicesByIDs(ctx context.Context, ids []string) ([]models.Service, error)
	ListServices(ctx context.Context) ([]models.Service, error)
	Settings(ctx context.Context) (models.Settings, error)
}

// Notifier is told after every committed change to any queue.
type Notifier interface {
	Notify()
}

type CompletionPublisher interface {
	PublishVisitCompleted(ctx context.Context, h *models.HistoryEntry) error
}

type Recorder interface {
	Observe(op string, err error)
}

const publishTimeout = 5 * time.Second

type Queue struct {
	log       *slog.Logger
	store     QueueStore
	catalog   Catalog
	notifier  Notifier
	publisher CompletionPublisher
	recorder  Recorder
	now       func() time.Time

	publishing sync.WaitGroup
}

// NewQueue returns the queue service. publisher and recorder may be nil.
func NewQueue(
	log *slog.Logger,
	store QueueStore,
	catalog Catalog,
	notifier Notifier,
	publisher CompletionPublisher,
	recorder Recorder,
) *Queue {
	return &Queue{
		log:       log,
		store:     store,
		catalog:   catalog,
		notifier:  notifier,
		publisher: publisher,
		recorder:  recorder,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (q *Queue) observe(op string, err error) {
	if q.recorder != nil {
		q.recorder.Observe(op, err)
	}
}

/*
|--------------------------------------------------------------------------
| JOIN
|--------------------------------------------------------------------------
*/

// Join puts the caller at the tail of the barber's queue.
func (q *Queue) Join(ctx context.Context, caller models.Caller, barberID string, serviceIDs []string) (entry *models.QueueEntry, err error) {
	const op = "service.queue.Join"
	log := q.log.With(slog.String("op", op), slog.String("customer_id", caller.UserID), slog.String("barber_id", barberID))
	defer func() { q.observe("join", err) }()

	ids := dedupe(serviceIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidServices)
	}

	barber, err := q.catalog.BarberByID(ctx, barberID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrBarberUnavailable)
	}
	if err != nil {
		log.Error("failed to load barber", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !barber.AcceptsCustomers() {
		return nil, fmt.Errorf("%s: %w", op, models.ErrBarberUnavailable)
	}

	services, err := q.catalog.ServicesByIDs(ctx, ids)
	if err != nil {
		log.Error("failed to load services", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(services) != len(ids) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidServices)
	}
	for _, s := range services {
		if !s.IsActive {
			return nil, fmt.Errorf("%s: service %s inactive: %w", op, s.ID, models.ErrInvalidServices)
		}
	}

	now := q.now()
	entry = &models.QueueEntry{
		ID:         uuid.NewString(),
		CustomerID: caller.UserID,
		BarberID:   barber.ID,
		Status:     models.StatusWaiting,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = q.store.Create(ctx, entry, ids)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrBarberUnavailable)
	}
	if err != nil {
		if !errors.Is(err, models.ErrAlreadyInQueue) && !errors.Is(err, models.ErrBarberUnavailable) {
			log.Error("failed to create entry", sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("customer joined queue", slog.String("queue_id", entry.ID), slog.Int64("position", entry.Position))
	q.notifier.Notify()
	return entry, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

/*
|--------------------------------------------------------------------------
| STATUS
|--------------------------------------------------------------------------
*/

// Status describes the caller's place in line. Other customers are anonymized.
func (q *Queue) Status(ctx context.Context, caller models.Caller) (*models.QueueView, error) {
	const op = "service.queue.Status"

	own, err := q.store.ActiveEntryForCustomer(ctx, caller.UserID)
	if errors.Is(err, models.ErrNotInQueue) {
		return &models.QueueView{InQueue: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entries, err := q.store.ActiveEntries(ctx, own.BarberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	idx := -1
	for i := range entries {
		if entries[i].ID == own.ID {
			idx = i
			break
		}
	}
	// completed or cancelled between the two reads
	if idx < 0 {
		return &models.QueueView{InQueue: false}, nil
	}

	view := &models.QueueView{
		InQueue:     true,
		QueueID:     own.ID,
		BarberID:    own.BarberID,
		Status:      entries[idx].Status,
		Position:    idx + 1,
		PeopleAhead: idx,
		TotalPrice:  entries[idx].PriceCents(),
		Services:    entries[idx].Services,
		Queue:       make([]models.QueueViewEntry, 0, len(entries)),
	}

	if barber, err := q.catalog.BarberByID(ctx, own.BarberID); err == nil {
		view.BarberName = barber.Name
	} else {
		q.log.Warn("failed to load barber name", slog.String("op", op), sl.Err(err))
	}

	for i, e := range entries {
		if i < idx {
			view.EstimatedWaitTime += e.DurationMin()
		}
		label := "Customer " + strconv.Itoa(i+1)
		if i == idx {
			label = "You"
		}
		view.Queue = append(view.Queue, models.QueueViewEntry{
			Position:    i + 1,
			Label:       label,
			IsSelf:      i == idx,
			Current:     i == 0,
			Status:      e.Status,
			DurationMin: e.DurationMin(),
		})
	}

	return view, nil
}

// BarberQueue is the staff view of a barber's active entries, with running wait estimates.
func (q *Queue) BarberQueue(ctx context.Context, caller models.Caller, barberID string) ([]models.BarberQueueEntry, error) {
	const op = "service.queue.BarberQueue"

	if !caller.Role.Staff() {
		return nil, fmt.Errorf("%s: %w", op, models.ErrForbidden)
	}
	if _, err := q.catalog.BarberByID(ctx, barberID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entries, err := q.store.ActiveEntries(ctx, barberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]models.BarberQueueEntry, 0, len(entries))
	wait := 0
	for i, e := range entries {
		out = append(out, models.BarberQueueEntry{
			QueueID:           e.ID,
			Position:          i + 1,
			CustomerID:        e.CustomerID,
			CustomerName:      e.CustomerName,
			Status:            e.Status,
			Current:           i == 0,
			Services:          e.Services,
			TotalPrice:        e.PriceCents(),
			EstimatedWaitTime: wait,
			JoinedAt:          e.CreatedAt,
		})
		wait += e.DurationMin()
	}
	return out, nil
}

func (q *Queue) AvailableBarbers(ctx context.Context) ([]models.Barber, error) {
	const op = "service.queue.AvailableBarbers"

	barbers, err := q.catalog.AvailableBarbers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return barbers, nil
}

// Services lists the active catalog for the join form.
func (q *Queue) Services(ctx context.Context) ([]models.Service, error) {
	const op = "service.queue.Services"

	services, err := q.catalog.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return services, nil
}

/*
|--------------------------------------------------------------------------
| MUTATIONS
|--------------------------------------------------------------------------
*/

func (q *Queue) Move(ctx context.Context, caller models.Caller, entryID string, dir models.Direction) (err error) {
	const op = "service.queue.Move"
	defer func() { q.observe("move", err) }()

	if !caller.Role.Staff() {
		return fmt.Errorf("%s: %w", op, models.ErrForbidden)
	}
	if !dir.Valid() {
		return fmt.Errorf("%s: %w", op, models.ErrInvalidDirection)
	}

	moved, err := q.store.Move(ctx, entryID, dir)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	q.log.Info("entry moved",
		slog.String("op", op),
		slog.String("queue_id", entryID),
		slog.String("direction", string(dir)),
		slog.Int64("position", moved.Position),
	)
	q.notifier.Notify()
	return nil
}

// Cancel withdraws a waiting entry. Without an id the caller's own entry is cancelled;
// only staff may cancel someone else's.
func (q *Queue) Cancel(ctx context.Context, caller models.Caller, entryID string) (err error) {
	const op = "service.queue.Cancel"
	defer func() { q.observe("cancel", err) }()

	var entry *models.QueueEntry
	if entryID == "" {
		entry, err = q.store.ActiveEntryForCustomer(ctx, caller.UserID)
	} else {
		entry, err = q.store.GetByID(ctx, entryID)
		if errors.Is(err, models.ErrNotFound) {
			err = models.ErrNotInQueue
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if entry.CustomerID != caller.UserID && !caller.Role.Staff() {
		return fmt.Errorf("%s: %w", op, models.ErrForbidden)
	}
	if entry.Status != models.StatusWaiting {
		return fmt.Errorf("%s: entry is %s: %w", op, entry.Status, models.ErrNotInQueue)
	}

	if err := q.store.Cancel(ctx, entry.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	q.log.Info("entry cancelled", slog.String("op", op), slog.String("queue_id", entry.ID), slog.String("by", caller.UserID))
	q.notifier.Notify()
	return nil
}

// RemoveService drops one requested service from a waiting entry. Admin only.
func (q *Queue) RemoveService(ctx context.Context, caller models.Caller, entryID, serviceID string) (err error) {
	const op = "service.queue.RemoveService"
	defer func() { q.observe("remove_service", err) }()

	if caller.Role != models.RoleAdmin {
		return fmt.Errorf("%s: %w", op, models.ErrForbidden)
	}

	if err := q.store.RemoveService(ctx, entryID, serviceID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	q.log.Info("service removed from entry", slog.String("op", op), slog.String("queue_id", entryID), slog.String("service_id", serviceID))
	q.notifier.Notify()
	return nil
}

// Complete closes the entry and records the visit with its payment breakdown.
// The returned history id is only produced once everything has committed.
func (q *Queue) Complete(ctx context.Context, caller models.Caller, req models.CompleteQueueRequest) (id string, err error) {
	const op = "service.queue.Complete"
	log := q.log.With(slog.String("op", op), slog.String("queue_id", req.QueueID))
	defer func() { q.observe("complete", err) }()

	if !caller.Role.Staff() {
		return "", fmt.Errorf("%s: %w", op, models.ErrForbidden)
	}

	installments := req.Installments
	if req.PaymentMethod != models.PaymentCreditCard || installments == 0 {
		installments = 1
	}

	req.Services, err = q.resolveServiceNames(ctx, req.Services)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	h, err := buildHistory(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	settings, err := q.catalog.Settings(ctx)
	if err != nil {
		log.Error("failed to load settings", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}
	charge, err := settings.Charge(h.TotalCents, req.PaymentMethod, installments)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	h.ID = uuid.NewString()
	h.PaymentMethod = req.PaymentMethod
	h.Installments = installments
	h.FeeRate = charge.FeeRate
	h.FeeCents = charge.FeeCents
	h.NetCents = charge.NetCents
	h.CommissionRate = charge.CommissionRate
	h.CommissionCents = charge.CommissionCents
	h.CreatedAt = q.now()

	if err := q.store.Complete(ctx, h); err != nil {
		if !errors.Is(err, models.ErrInsufficientStock) && !errors.Is(err, models.ErrNotInQueue) && !errors.Is(err, models.ErrNotFound) {
			log.Error("failed to complete entry", sl.Err(err))
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("visit completed",
		slog.String("history_id", h.ID),
		slog.Int64("total_cents", h.TotalCents),
		slog.String("payment_method", string(h.PaymentMethod)),
	)
	q.notifier.Notify()

	if q.publisher != nil {
		q.publishing.Add(1)
		go q.publish(context.WithoutCancel(ctx), log, h)
	}

	return h.ID, nil
}

// publish runs after the response has been decided; the broker never delays it.
func (q *Queue) publish(ctx context.Context, log *slog.Logger, h *models.HistoryEntry) {
	defer q.publishing.Done()

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := q.publisher.PublishVisitCompleted(ctx, h); err != nil {
		log.Warn("failed to publish visit completed", sl.Err(err))
	}
}

// Wait blocks until in-flight visit.completed publishes have finished.
func (q *Queue) Wait() {
	q.publishing.Wait()
}

// resolveServiceNames fills blank service names from the catalog so the history
// snapshot always carries them.
func (q *Queue) resolveServiceNames(ctx context.Context, in []models.CompletedService) ([]models.CompletedService, error) {
	var ids []string
	for _, s := range in {
		if s.Name == "" {
			ids = append(ids, s.ServiceID)
		}
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return in, nil
	}

	found, err := q.catalog.ServicesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(found))
	for _, s := range found {
		names[s.ID] = s.Name
	}
	services := make([]models.CompletedService, len(in))
	copy(services, in)
	for i := range services {
		if services[i].Name != "" {
			continue
		}
		name, ok := names[services[i].ServiceID]
		if !ok {
			return nil, fmt.Errorf("service %s: %w", services[i].ServiceID, models.ErrInvalidServices)
		}
		services[i].Name = name
	}
	return services, nil
}

// buildHistory totals the consumed services, products and extras. Extras are recorded
// once per unit.
func buildHistory(req models.CompleteQueueRequest) (*models.HistoryEntry, error) {
	h := &models.HistoryEntry{QueueID: req.QueueID}

	for _, s := range req.Services {
		if s.PriceCents < 0 {
			return nil, models.ErrValidation
		}
		sid := s.ServiceID
		h.Services = append(h.Services, models.HistoryService{ServiceID: &sid, Name: s.Name, PriceCents: s.PriceCents})
		h.TotalCents += s.PriceCents
	}

	for _, p := range req.Products {
		if p.Quantity < 1 || p.PriceCents < 0 {
			return nil, models.ErrValidation
		}
		total := int64(p.Quantity) * p.PriceCents
		h.Items = append(h.Items, models.HistoryItem{
			ProductID:  p.ProductID,
			Quantity:   p.Quantity,
			PriceCents: p.PriceCents,
			TotalCents: total,
		})
		h.TotalCents += total
	}

	for _, x := range req.ExtraServices {
		if x.Quantity < 1 || x.PriceCents < 0 {
			return nil, models.ErrValidation
		}
		var sid *string
		if x.ServiceID != "" {
			v := x.ServiceID
			sid = &v
		}
		for i := 0; i < x.Quantity; i++ {
			h.Services = append(h.Services, models.HistoryService{ServiceID: sid, Name: x.Name, PriceCents: x.PriceCents})
		}
		h.TotalCents += int64(x.Quantity) * x.PriceCents
	}

	return h, nil
}
