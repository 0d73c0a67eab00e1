package service

import (
	"context"
	"strings"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

// LedgerService builds the maintenance history of an asset.
type LedgerService struct {
	tickets repository.TicketRepository
	orders  repository.WorkOrderRepository
}

// NewLedgerService constructs the service.
func NewLedgerService(deps Dependencies) *LedgerService {
	return &LedgerService{tickets: deps.Tickets, orders: deps.WorkOrders}
}

// BuildLedger reads the asset's repair tickets and their work orders and
// folds them into a ledger. The result is deterministic for a given state.
func (s *LedgerService) BuildLedger(ctx context.Context, assetCode string) (domain.MaintenanceLedger, error) {
	assetCode = strings.TrimSpace(assetCode)
	if assetCode == "" {
		return domain.MaintenanceLedger{}, apperrors.NewFieldError("", "asset_code", "required")
	}
	tickets, err := s.tickets.ListRepairByAsset(ctx, assetCode)
	if err != nil {
		return domain.MaintenanceLedger{}, err
	}
	ids := make([]string, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.ID)
	}
	orders, err := s.orders.ListByTickets(ctx, ids)
	if err != nil {
		return domain.MaintenanceLedger{}, err
	}
	return domain.BuildLedger(assetCode, tickets, orders), nil
}
