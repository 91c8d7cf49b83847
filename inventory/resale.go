package inventory

import (
	"context"
	"fmt"
	"time"

	"ticketmarket-settlement-backend/model"
	"ticketmarket-settlement-backend/notification"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ListResale puts a valid ticket on the secondary market, enforcing the
// active resale policy: price cap, hold period after purchase, and the
// cut-off before the event.
func (a *Allocator) ListResale(ctx context.Context, ticketID string, askingPrice decimal.Decimal) (model.ResaleListing, error) {
	ticket, err := a.tickets.Find(ctx, ticketID)
	if err != nil {
		return model.ResaleListing{}, fmt.Errorf("listResale: error finding ticket %s: %w", ticketID, err)
	}
	if ticket.Status != model.TicketValid {
		return model.ResaleListing{}, fmt.Errorf("listResale: ticket %s is %s: %w", ticketID, ticket.Status, ErrPolicyViolation)
	}

	tt, err := a.ticketTypes.Find(ctx, ticket.TicketTypeID)
	if err != nil {
		return model.ResaleListing{}, fmt.Errorf("listResale: error finding ticket type: %w", err)
	}

	policy, err := a.resale.ActivePolicy(ctx, tt.TenantID)
	if err != nil {
		return model.ResaleListing{}, fmt.Errorf("listResale: error finding resale policy: %w", err)
	}

	now := a.clock.Now()
	if minAge := time.Duration(policy.MinHoursBeforeResale) * time.Hour; now.Sub(ticket.IssuedAt) < minAge {
		return model.ResaleListing{}, fmt.Errorf("listResale: ticket held less than %dh: %w", policy.MinHoursBeforeResale, ErrPolicyViolation)
	}
	if tt.EventStartsAt != nil {
		if cutoff := tt.EventStartsAt.Add(-time.Duration(policy.MinHoursBeforeEvent) * time.Hour); now.After(cutoff) {
			return model.ResaleListing{}, fmt.Errorf("listResale: within %dh of event start: %w", policy.MinHoursBeforeEvent, ErrPolicyViolation)
		}
	}

	maxAllowed := policy.MaxAllowedPrice(tt.Price)
	if askingPrice.GreaterThan(maxAllowed) {
		return model.ResaleListing{}, fmt.Errorf("listResale: asking price %s above cap %s: %w", askingPrice, maxAllowed, ErrPolicyViolation)
	}

	listing := model.ResaleListing{
		ID:          uuid.NewString(),
		TicketID:    ticket.ID,
		SellerID:    ticket.OwnerID,
		AskingPrice: askingPrice,
		Currency:    tt.Currency,
		Status:      model.ResaleListingActive,
		CreatedAt:   now,
	}
	if err := a.resale.SaveListing(ctx, listing); err != nil {
		return model.ResaleListing{}, fmt.Errorf("listResale: error saving listing: %w", err)
	}

	return listing, nil
}

// CancelResale withdraws an active listing.
func (a *Allocator) CancelResale(ctx context.Context, listingID string) error {
	listing, err := a.resale.FindListing(ctx, listingID)
	if err != nil {
		return fmt.Errorf("cancelResale: error finding listing %s: %w", listingID, err)
	}
	if listing.Status != model.ResaleListingActive {
		return fmt.Errorf("cancelResale: listing %s is %s: %w", listingID, listing.Status, ErrListingNotActive)
	}
	listing.Status = model.ResaleListingCancelled
	if err := a.resale.UpdateListing(ctx, listing); err != nil {
		return fmt.Errorf("cancelResale: error updating listing: %w", err)
	}
	return nil
}

// SettleResale flips an active listing to sold, moves ticket ownership and
// computes the fee split. The returned transaction feeds the ledger as a
// sale plus commission pair.
func (a *Allocator) SettleResale(ctx context.Context, listingID, buyerID string) (model.ResaleTransaction, error) {
	listing, err := a.resale.FindListing(ctx, listingID)
	if err != nil {
		return model.ResaleTransaction{}, fmt.Errorf("settleResale: error finding listing %s: %w", listingID, err)
	}

	ticket, err := a.tickets.Find(ctx, listing.TicketID)
	if err != nil {
		return model.ResaleTransaction{}, fmt.Errorf("settleResale: error finding ticket: %w", err)
	}

	tt, err := a.ticketTypes.Find(ctx, ticket.TicketTypeID)
	if err != nil {
		return model.ResaleTransaction{}, fmt.Errorf("settleResale: error finding ticket type: %w", err)
	}

	a.locks.Lock(ticket.TicketTypeID)
	defer a.locks.Unlock(ticket.TicketTypeID)

	listing, err = a.resale.FindListing(ctx, listingID)
	if err != nil {
		return model.ResaleTransaction{}, fmt.Errorf("settleResale: error finding listing %s: %w", listingID, err)
	}
	now := a.clock.Now()
	if listing.Status != model.ResaleListingActive {
		return model.ResaleTransaction{}, fmt.Errorf("settleResale: listing %s is %s: %w", listingID, listing.Status, ErrListingNotActive)
	}
	if listing.ExpiresAt != nil && now.After(*listing.ExpiresAt) {
		listing.Status = model.ResaleListingExpired
		a.resale.UpdateListing(ctx, listing)
		return model.ResaleTransaction{}, fmt.Errorf("settleResale: listing %s expired: %w", listingID, ErrListingNotActive)
	}

	policy, err := a.resale.ActivePolicy(ctx, tt.TenantID)
	if err != nil {
		return model.ResaleTransaction{}, fmt.Errorf("settleResale: error finding resale policy: %w", err)
	}

	listing.Status = model.ResaleListingSold
	if err := a.resale.UpdateListing(ctx, listing); err != nil {
		return model.ResaleTransaction{}, fmt.Errorf("settleResale: error updating listing: %w", err)
	}

	ticket.OwnerID = buyerID
	if err := a.tickets.Update(ctx, ticket); err != nil {
		return model.ResaleTransaction{}, fmt.Errorf("settleResale: error transferring ticket: %w", err)
	}

	fee := listing.AskingPrice.Mul(policy.PlatformFeePercentage).Div(decimal.NewFromInt(100)).Round(2)
	rt := model.ResaleTransaction{
		ID:           uuid.NewString(),
		ListingID:    listing.ID,
		TicketID:     ticket.ID,
		SellerID:     listing.SellerID,
		BuyerID:      buyerID,
		SalePrice:    listing.AskingPrice,
		PlatformFee:  fee,
		SellerPayout: listing.AskingPrice.Sub(fee),
		Currency:     listing.Currency,
		CreatedAt:    now,
	}
	if err := a.resale.SaveTransaction(ctx, rt); err != nil {
		return model.ResaleTransaction{}, fmt.Errorf("settleResale: error saving resale transaction: %w", err)
	}

	a.dispatcher.Dispatch(ctx, notification.EventResaleSettled, rt)

	return rt, nil
}
