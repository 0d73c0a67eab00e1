// Package memory provides in-process implementations of the repository
// interfaces. It backs the service when no Postgres DSN is configured and is
// the default fixture in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
)

// Store holds all records. Transactions are serialized by txMu. Writes made
// inside a transaction record an undo step, and a failed transaction replays
// its own steps in reverse, so writes made outside it survive a rollback.
type Store struct {
	txMu sync.Mutex

	mu         sync.RWMutex
	tickets    map[string]domain.Ticket
	orders     map[string]domain.WorkOrder
	resources  map[string]domain.Resource
	principals map[string]domain.Principal
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		tickets:    make(map[string]domain.Ticket),
		orders:     make(map[string]domain.WorkOrder),
		resources:  make(map[string]domain.Resource),
		principals: make(map[string]domain.Principal),
	}
}

func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }
func (s *Store) WorkOrders() repository.WorkOrderRepository { return workOrderRepo{s} }
func (s *Store) Resources() repository.ResourceRepository { return resourceRepo{s} }
func (s *Store) Directory() repository.DirectoryRepository { return directoryRepo{s} }

type txKey struct{}

// txState is the undo log of the running transaction. It is only touched
// while Store.mu is held.
type txState struct {
	undo []func()
}

// WithinTx implements repository.TxManager.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &txState{}
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				s.rollback(tx)
				panic(p)
			}
		}()
		return fn(context.WithValue(ctx, txKey{}, tx))
	}()
	if err != nil {
		s.rollback(tx)
	}
	return err
}

func (s *Store) rollback(tx *txState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

// journal registers undo when ctx carries a transaction. Callers hold s.mu.
func journal(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(txKey{}).(*txState); ok {
		tx.undo = append(tx.undo, undo)
	}
}

func restoreEntry[V any](m map[string]V, key string) func() {
	prev, existed := m[key]
	return func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	}
}

func checkAppendOnly(kind, id string, stored, next []domain.TimelineEntry) error {
	if len(next) < len(stored) {
		return fmt.Errorf("timeline of %s %s shrank from %d to %d entries", kind, id, len(stored), len(next))
	}
	return nil
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(ctx context.Context, ticket domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id := ticket.Base().ID
	if _, exists := r.s.tickets[id]; exists {
		return fmt.Errorf("ticket %s already exists", id)
	}
	for _, t := range r.s.tickets {
		if t.Base().Number == ticket.Base().Number {
			return fmt.Errorf("ticket number %s already exists", ticket.Base().Number)
		}
	}
	journal(ctx, restoreEntry(r.s.tickets, id))
	r.s.tickets[id] = ticket.Clone()
	return nil
}

func (r ticketRepo) Update(ctx context.Context, ticket domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id := ticket.Base().ID
	stored, ok := r.s.tickets[id]
	if !ok || stored.Type() != ticket.Type() {
		return repository.ErrNotFound
	}
	if err := checkAppendOnly("ticket", id, stored.Base().Timeline, ticket.Base().Timeline); err != nil {
		return err
	}
	next := ticket.Clone()
	next.Base().Number = stored.Base().Number
	next.Base().CreatedAt = stored.Base().CreatedAt
	journal(ctx, restoreEntry(r.s.tickets, id))
	r.s.tickets[id] = next
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t.Clone(), nil
}

// GetByIDForUpdate needs no row lock; transactions already run one at a time.
func (r ticketRepo) GetByIDForUpdate(ctx context.Context, id string) (domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	result := make([]domain.Ticket, 0, len(r.s.tickets))
	for _, t := range r.s.tickets {
		if matchesFilter(t, filter) {
			result = append(result, t.Clone())
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].Base(), result[j].Base()
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Number > b.Number
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []domain.Ticket{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func matchesFilter(t domain.Ticket, f repository.TicketFilter) bool {
	base := t.Base()
	if f.Type != nil && t.Type() != *f.Type {
		return false
	}
	if f.RequesterID != nil && base.RequesterID != *f.RequesterID {
		return false
	}
	if f.AssigneeID != nil && !base.IsAssignedTo(*f.AssigneeID) {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, t.CurrentStatus()) {
		return false
	}
	if f.AssetCode != nil {
		repair, ok := domain.AsRepair(t)
		if !ok || !domain.MatchesAsset(repair.Asset, *f.AssetCode) {
			return false
		}
	}
	if f.ResourceID != nil {
		booking, ok := domain.AsBooking(t)
		if !ok || booking.ResourceID != *f.ResourceID {
			return false
		}
	}
	return true
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func (r ticketRepo) ListRepairByAsset(ctx context.Context, assetCode string) ([]*domain.RepairTicket, error) {
	typ := domain.TicketTypeRepair
	code := strings.TrimSpace(assetCode)
	tickets, err := r.List(ctx, repository.TicketFilter{Type: &typ, AssetCode: &code})
	if err != nil {
		return nil, err
	}
	result := make([]*domain.RepairTicket, 0, len(tickets))
	for _, t := range tickets {
		if repair, ok := domain.AsRepair(t); ok {
			result = append(result, repair)
		}
	}
	return result, nil
}

func (r ticketRepo) ListBookingEvents(_ context.Context, resourceID string) ([]domain.BookingEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var events []domain.BookingEvent
	for _, t := range r.s.tickets {
		if booking, ok := domain.AsBooking(t); ok && booking.ResourceID == resourceID {
			events = append(events, booking.Event())
		}
	}
	domain.SortEvents(events)
	return events, nil
}

type workOrderRepo struct{ s *Store }

func (r workOrderRepo) Create(ctx context.Context, order *domain.WorkOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.orders[order.ID]; exists {
		return fmt.Errorf("work order %s already exists", order.ID)
	}
	if _, ok := r.s.tickets[order.TicketID]; !ok {
		return fmt.Errorf("work order %s references unknown ticket %s", order.ID, order.TicketID)
	}
	journal(ctx, restoreEntry(r.s.orders, order.ID))
	r.s.orders[order.ID] = order.Clone()
	return nil
}

func (r workOrderRepo) Update(ctx context.Context, order *domain.WorkOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.orders[order.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if err := checkAppendOnly("work order", order.ID, stored.Timeline, order.Timeline); err != nil {
		return err
	}
	next := order.Clone()
	next.TicketID, next.Type, next.CreatedBy, next.CreatedAt = stored.TicketID, stored.Type, stored.CreatedBy, stored.CreatedAt
	journal(ctx, restoreEntry(r.s.orders, order.ID))
	r.s.orders[order.ID] = next
	return nil
}

func (r workOrderRepo) GetByID(_ context.Context, id string) (*domain.WorkOrder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	order, ok := r.s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := order.Clone()
	return &c, nil
}

func (r workOrderRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.WorkOrder, error) {
	byTicket, err := r.ListByTickets(ctx, []string{ticketID})
	if err != nil {
		return nil, err
	}
	return byTicket[ticketID], nil
}

func (r workOrderRepo) ListByTickets(_ context.Context, ticketIDs []string) (map[string][]domain.WorkOrder, error) {
	wanted := make(map[string]struct{}, len(ticketIDs))
	for _, id := range ticketIDs {
		wanted[id] = struct{}{}
	}
	result := make(map[string][]domain.WorkOrder, len(ticketIDs))

	r.s.mu.RLock()
	for _, o := range r.s.orders {
		if _, ok := wanted[o.TicketID]; ok {
			result[o.TicketID] = append(result[o.TicketID], o.Clone())
		}
	}
	r.s.mu.RUnlock()

	for _, orders := range result {
		sort.Slice(orders, func(i, j int) bool {
			if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
				return orders[i].CreatedAt.Before(orders[j].CreatedAt)
			}
			return orders[i].ID < orders[j].ID
		})
	}
	return result, nil
}

type resourceRepo struct{ s *Store }

func (r resourceRepo) Create(ctx context.Context, resource *domain.Resource) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.resources[resource.ID]; exists {
		return fmt.Errorf("resource %s already exists", resource.ID)
	}
	journal(ctx, restoreEntry(r.s.resources, resource.ID))
	r.s.resources[resource.ID] = *resource
	return nil
}

func (r resourceRepo) Update(ctx context.Context, resource *domain.Resource) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.resources[resource.ID]
	if !ok {
		return repository.ErrNotFound
	}
	next := *resource
	next.CreatedAt = stored.CreatedAt
	journal(ctx, restoreEntry(r.s.resources, resource.ID))
	r.s.resources[resource.ID] = next
	return nil
}

func (r resourceRepo) GetByID(_ context.Context, id string) (*domain.Resource, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	resource, ok := r.s.resources[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &resource, nil
}

func (r resourceRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Resource, error) {
	return r.GetByID(ctx, id)
}

func (r resourceRepo) List(_ context.Context, activeOnly bool) ([]domain.Resource, error) {
	r.s.mu.RLock()
	result := make([]domain.Resource, 0, len(r.s.resources))
	for _, res := range r.s.resources {
		if activeOnly && !res.Active {
			continue
		}
		result = append(result, res)
	}
	r.s.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		if result[i].Category != result[j].Category {
			return result[i].Category < result[j].Category
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

type directoryRepo struct{ s *Store }

func (r directoryRepo) Upsert(ctx context.Context, principal domain.Principal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	journal(ctx, restoreEntry(r.s.principals, principal.ID))
	r.s.principals[principal.ID] = principal
	return nil
}

func (r directoryRepo) GetByID(_ context.Context, id string) (*domain.Principal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.principals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r directoryRepo) ListByRole(_ context.Context, role domain.Role) ([]domain.Principal, error) {
	r.s.mu.RLock()
	var result []domain.Principal
	for _, p := range r.s.principals {
		if p.Role == role {
			result = append(result, p)
		}
	}
	r.s.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}
