package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticketmarket-settlement-backend/clock"
	"ticketmarket-settlement-backend/inventory"
	"ticketmarket-settlement-backend/ledger"
	"ticketmarket-settlement-backend/logger"
	"ticketmarket-settlement-backend/model"
	"ticketmarket-settlement-backend/notification"
	"ticketmarket-settlement-backend/tax"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Orchestrator sequences the allocator, calculator and poster for one order.
// The cross-cutting rule it enforces: inventory is committed, tax is computed
// and the ledger is posted together, or none of them are.
type Orchestrator struct {
	allocator  *inventory.Allocator
	calculator *tax.Calculator
	poster     *ledger.Poster
	orders     OrderRepository
	gateway    PaymentGateway
	clock      clock.Clock
	notifier   notification.Dispatcher

	commissionPct  decimal.Decimal
	requireGeneral bool
}

type OrchestratorProperty struct {
	Allocator            *inventory.Allocator
	Calculator           *tax.Calculator
	Poster               *ledger.Poster
	Orders               OrderRepository
	Gateway              PaymentGateway
	Clock                clock.Clock
	Notifier             notification.Dispatcher
	CommissionPercentage decimal.Decimal
	RequireGeneralTax    bool
}

func NewOrchestrator(p OrchestratorProperty) *Orchestrator {
	if p.Clock == nil {
		p.Clock = clock.System()
	}
	if p.Notifier == nil {
		p.Notifier = notification.Nop{}
	}
	return &Orchestrator{
		allocator:      p.Allocator,
		calculator:     p.Calculator,
		poster:         p.Poster,
		orders:         p.Orders,
		gateway:        p.Gateway,
		clock:          p.Clock,
		notifier:       p.Notifier,
		commissionPct:  p.CommissionPercentage,
		requireGeneral: p.RequireGeneralTax,
	}
}

// LineRequest is one requested ticket type and quantity.
type LineRequest struct {
	TicketTypeID string
	Quantity     int64
}

type ReservationRequest struct {
	CustomerID  string
	OrganizerID string
	TenantID    string
	EventID     string
	Currency    string
	Lines       []LineRequest
}

// ReserveTickets creates an order draft with one hold per line. If any line
// cannot be reserved, every hold taken so far is released and nothing is
// persisted.
func (o *Orchestrator) ReserveTickets(ctx context.Context, req ReservationRequest) (model.Order, error) {
	orderID := uuid.NewString()
	now := o.clock.Now()

	order := model.Order{
		ID:          orderID,
		CustomerID:  req.CustomerID,
		OrganizerID: req.OrganizerID,
		TenantID:    req.TenantID,
		EventID:     req.EventID,
		Currency:    req.Currency,
		Subtotal:    decimal.Zero,
		TaxTotal:    decimal.Zero,
		Total:       decimal.Zero,
		Status:      model.OrderWaitingForPayment,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for _, line := range req.Lines {
		tt, err := o.allocator.TicketType(ctx, line.TicketTypeID)
		if err != nil {
			o.releaseHolds(ctx, order)
			return model.Order{}, fmt.Errorf("reserveTickets: error finding ticket type %s: %w", line.TicketTypeID, err)
		}

		hold, err := o.allocator.Reserve(ctx, line.TicketTypeID, line.Quantity, orderID)
		if err != nil {
			o.releaseHolds(ctx, order)
			return model.Order{}, fmt.Errorf("reserveTickets: %w", err)
		}

		amount := tt.Price.Mul(decimal.NewFromInt(line.Quantity))
		order.Lines = append(order.Lines, model.OrderLine{
			TicketTypeID: line.TicketTypeID,
			HoldID:       hold.ID,
			Quantity:     line.Quantity,
			UnitPrice:    tt.Price,
			Amount:       amount,
		})
		order.Subtotal = order.Subtotal.Add(amount)
	}
	order.Total = order.Subtotal

	if err := o.orders.Save(ctx, order); err != nil {
		o.releaseHolds(ctx, order)
		return model.Order{}, fmt.Errorf("reserveTickets: error saving order: %w", err)
	}

	logger.Infof(ctx, "reserveTickets: order %s, %d lines, subtotal %s", orderID, len(order.Lines), order.Subtotal.String())
	return order, nil
}

// ConfirmOrder settles a reserved order: price taxes, authorize the charge,
// post the ledger batch, then convert holds into tickets. Any failure before
// the ledger write releases the holds and leaves the ledger untouched.
func (o *Orchestrator) ConfirmOrder(ctx context.Context, orderID, paymentToken string) (model.Order, []model.Ticket, model.TaxBreakdown, error) {
	order, err := o.orders.Find(ctx, orderID)
	if err != nil {
		return model.Order{}, nil, model.TaxBreakdown{}, fmt.Errorf("confirmOrder: %w", err)
	}
	if order.Status != model.OrderWaitingForPayment && order.Status != model.OrderDraft {
		return model.Order{}, nil, model.TaxBreakdown{}, fmt.Errorf("confirmOrder: order %s is %s: %w", orderID, order.Status, ErrOrderState)
	}

	breakdown, err := o.calculator.Compute(ctx, o.taxInput(order))
	if err != nil {
		o.abort(ctx, order, "tax computation failed")
		return model.Order{}, nil, model.TaxBreakdown{}, fmt.Errorf("confirmOrder: %w", err)
	}

	customerTax := decimal.Zero
	for _, item := range breakdown.Items {
		if item.IsAddedToPrice {
			customerTax = customerTax.Add(item.Amount)
		}
	}
	chargeTotal := order.Subtotal.Add(customerTax)

	auth, err := o.gateway.Authorize(ctx, AuthorizationRequest{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Amount:     chargeTotal,
		Currency:   order.Currency,
		Token:      paymentToken,
	})
	if err != nil {
		o.abort(ctx, order, "gateway unreachable")
		return model.Order{}, nil, model.TaxBreakdown{}, fmt.Errorf("confirmOrder: %w", err)
	}
	if !auth.Approved {
		o.abort(ctx, order, auth.Reason)
		return model.Order{}, nil, model.TaxBreakdown{}, fmt.Errorf("confirmOrder: order %s, %s: %w", orderID, auth.Reason, ErrPaymentDeclined)
	}

	if _, err := o.poster.Post(ctx, order.OrganizerID, order.Currency, o.saleEntries(order, breakdown)); err != nil {
		o.abort(ctx, order, "ledger post failed")
		return model.Order{}, nil, model.TaxBreakdown{}, fmt.Errorf("confirmOrder: %w", err)
	}

	var tickets []model.Ticket
	for _, line := range order.Lines {
		issued, err := o.allocator.Confirm(ctx, line.HoldID, order.ID, order.CustomerID)
		if err != nil {
			// Ledger already holds the sale; reverse it rather than edit it.
			o.compensate(ctx, order, breakdown, tickets)
			return model.Order{}, nil, model.TaxBreakdown{}, fmt.Errorf("confirmOrder: %w", err)
		}
		tickets = append(tickets, issued...)
	}

	// Only a settled order reaches the audit trail and the revenue counters.
	if err := o.calculator.Commit(ctx, o.taxInput(order), breakdown); err != nil {
		logger.Errorf(ctx, "confirmOrder: error committing tax records for order %s: %+v", orderID, err)
	}

	order.TaxTotal = customerTax
	order.Total = chargeTotal
	order.Status = model.OrderPaid
	order.UpdatedAt = o.clock.Now()
	if err := o.orders.Update(ctx, order); err != nil {
		return model.Order{}, nil, model.TaxBreakdown{}, fmt.Errorf("confirmOrder: error updating order: %w", err)
	}

	logger.Infof(ctx, "confirmOrder: order %s paid, total %s, %d tickets", orderID, chargeTotal.String(), len(tickets))
	return order, tickets, breakdown, nil
}

// CancelOrder releases a pending order, or refunds a paid one. Refunds post
// new ledger rows; past rows are never touched.
func (o *Orchestrator) CancelOrder(ctx context.Context, orderID string) (model.Order, error) {
	order, err := o.orders.Find(ctx, orderID)
	if err != nil {
		return model.Order{}, fmt.Errorf("cancelOrder: %w", err)
	}

	switch order.Status {
	case model.OrderDraft, model.OrderWaitingForPayment:
		o.releaseHolds(ctx, order)

	case model.OrderPaid:
		records, err := o.calculator.Records(ctx, order.ID)
		if err != nil {
			return model.Order{}, fmt.Errorf("cancelOrder: %w", err)
		}
		entries := []ledger.Entry{
			{Type: model.TxRefund, Amount: order.Subtotal.Neg(), OrderID: &order.ID},
			{Type: model.TxAdjustment, Amount: o.commission(order.Subtotal), OrderID: &order.ID},
		}
		// Organizer-borne taxes were debited with the sale; the refund batch
		// returns them too.
		for _, rec := range records {
			if rec.Skipped || rec.IsAddedToPrice {
				continue
			}
			entries = append(entries, ledger.Entry{Type: model.TxAdjustment, Amount: rec.Amount, OrderID: &order.ID})
		}
		if _, err := o.poster.Post(ctx, order.OrganizerID, order.Currency, entries); err != nil {
			return model.Order{}, fmt.Errorf("cancelOrder: %w", err)
		}

		tickets, err := o.allocator.TicketsByOrder(ctx, order.ID)
		if err != nil {
			return model.Order{}, fmt.Errorf("cancelOrder: %w", err)
		}
		for _, t := range tickets {
			if t.Status != model.TicketValid {
				continue
			}
			if err := o.allocator.CancelTicket(ctx, t.ID); err != nil {
				logger.Errorf(ctx, "cancelOrder: error cancelling ticket %s: %+v", t.ID, err)
			}
		}

	default:
		return model.Order{}, fmt.Errorf("cancelOrder: order %s is %s: %w", orderID, order.Status, ErrOrderState)
	}

	order.Status = model.OrderCancelled
	order.UpdatedAt = o.clock.Now()
	if err := o.orders.Update(ctx, order); err != nil {
		return model.Order{}, fmt.Errorf("cancelOrder: error updating order: %w", err)
	}

	o.notifier.Dispatch(ctx, notification.EventOrderCancelled, order)
	return order, nil
}

// SettleResale completes a secondary-market sale and posts the proceeds to
// the seller's payable account as a sale plus commission pair.
func (o *Orchestrator) SettleResale(ctx context.Context, listingID, buyerID string) (model.ResaleTransaction, error) {
	rt, err := o.allocator.SettleResale(ctx, listingID, buyerID)
	if err != nil {
		return model.ResaleTransaction{}, fmt.Errorf("settleResale: %w", err)
	}

	entries := []ledger.Entry{
		{Type: model.TxSale, Amount: rt.SalePrice},
		{Type: model.TxCommission, Amount: rt.PlatformFee.Neg()},
	}
	if _, err := o.poster.Post(ctx, rt.SellerID, rt.Currency, entries); err != nil {
		return model.ResaleTransaction{}, fmt.Errorf("settleResale: %w", err)
	}
	return rt, nil
}

// RequestPayout forwards to the poster; here so callers have a single
// mutating surface.
func (o *Orchestrator) RequestPayout(ctx context.Context, organizerID, currency string, periodStart, periodEnd time.Time) (model.MarketplacePayout, error) {
	return o.poster.RequestPayout(ctx, organizerID, currency, periodStart, periodEnd)
}

// Read-only queries for reporting layers.

func (o *Orchestrator) AvailableQuota(ctx context.Context, ticketTypeID string) (int64, error) {
	return o.allocator.AvailableQuota(ctx, ticketTypeID)
}

func (o *Orchestrator) OrganizerBalance(ctx context.Context, organizerID string) (decimal.Decimal, error) {
	return o.poster.Balance(ctx, organizerID)
}

func (o *Orchestrator) OrganizerStatement(ctx context.Context, organizerID string) ([]model.MarketplaceTransaction, error) {
	return o.poster.Transactions(ctx, organizerID)
}

func (o *Orchestrator) TaxRecords(ctx context.Context, orderID string) ([]model.TaxCollectionRecord, error) {
	return o.calculator.Records(ctx, orderID)
}

func (o *Orchestrator) Order(ctx context.Context, orderID string) (model.Order, error) {
	return o.orders.Find(ctx, orderID)
}

func (o *Orchestrator) taxInput(order model.Order) tax.Input {
	return tax.Input{
		TenantID: order.TenantID,
		OrderID:  order.ID,
		Subtotal: order.Subtotal,
		Currency: order.Currency,
		Date:     o.clock.Now(),
		Exemption: tax.ExemptionContext{
			CustomerID: &order.CustomerID,
			EventID:    &order.EventID,
		},
		RequireGeneralTax: o.requireGeneral,
	}
}

// saleEntries builds the atomic batch for a paid order: the sale credit, the
// commission debit, then one adjustment debit per organizer-borne tax.
func (o *Orchestrator) saleEntries(order model.Order, breakdown model.TaxBreakdown) []ledger.Entry {
	entries := []ledger.Entry{
		{Type: model.TxSale, Amount: order.Subtotal, OrderID: &order.ID},
		{Type: model.TxCommission, Amount: o.commission(order.Subtotal).Neg(), OrderID: &order.ID},
	}
	for _, item := range breakdown.Items {
		if !item.IsAddedToPrice {
			entries = append(entries, ledger.Entry{Type: model.TxAdjustment, Amount: item.Amount.Neg(), OrderID: &order.ID})
		}
	}
	return entries
}

func (o *Orchestrator) commission(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(o.commissionPct).Div(hundred).Round(2)
}

// abort releases the order's holds and cancels it; nothing was posted yet.
func (o *Orchestrator) abort(ctx context.Context, order model.Order, reason string) {
	logger.Warnf(ctx, "abort: order %s, %s", order.ID, reason)
	o.releaseHolds(ctx, order)

	order.Status = model.OrderCancelled
	order.UpdatedAt = o.clock.Now()
	if err := o.orders.Update(ctx, order); err != nil {
		logger.Errorf(ctx, "abort: error updating order %s: %+v", order.ID, err)
	}
	o.notifier.Dispatch(ctx, notification.EventOrderCancelled, order)
}

// compensate reverses a posted sale after a hold failed to confirm. Issued
// tickets are cancelled and the remaining holds released.
func (o *Orchestrator) compensate(ctx context.Context, order model.Order, breakdown model.TaxBreakdown, issued []model.Ticket) {
	entries := []ledger.Entry{
		{Type: model.TxRefund, Amount: order.Subtotal.Neg(), OrderID: &order.ID},
		{Type: model.TxAdjustment, Amount: o.commission(order.Subtotal), OrderID: &order.ID},
	}
	for _, item := range breakdown.Items {
		if !item.IsAddedToPrice {
			entries = append(entries, ledger.Entry{Type: model.TxAdjustment, Amount: item.Amount, OrderID: &order.ID})
		}
	}
	if _, err := o.poster.Post(ctx, order.OrganizerID, order.Currency, entries); err != nil {
		logger.Errorf(ctx, "compensate: error reversing ledger for order %s: %+v", order.ID, err)
	}

	for _, t := range issued {
		if err := o.allocator.CancelTicket(ctx, t.ID); err != nil && !errors.Is(err, inventory.ErrPolicyViolation) {
			logger.Errorf(ctx, "compensate: error cancelling ticket %s: %+v", t.ID, err)
		}
	}
	o.releaseHolds(ctx, order)

	order.Status = model.OrderExpired
	order.UpdatedAt = o.clock.Now()
	if err := o.orders.Update(ctx, order); err != nil {
		logger.Errorf(ctx, "compensate: error updating order %s: %+v", order.ID, err)
	}
}

func (o *Orchestrator) releaseHolds(ctx context.Context, order model.Order) {
	for _, line := range order.Lines {
		if line.HoldID == "" {
			continue
		}
		if err := o.allocator.Release(ctx, line.HoldID); err != nil && !errors.Is(err, inventory.ErrNotFound) {
			logger.Errorf(ctx, "releaseHolds: error releasing hold %s: %+v", line.HoldID, err)
		}
	}
}
