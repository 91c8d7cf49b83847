package inventory

import (
	"context"
	"fmt"

	"ticketmarket-settlement-backend/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SplitMode string

const (
	SplitEqual  SplitMode = "equal"
	SplitCustom SplitMode = "custom"
)

type SplitShare struct {
	CustomerID string          `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// SplitPlan describes how a group booking's total is divided. Equal mode
// ignores the per-share amounts; custom mode requires them to sum to the
// booking total exactly.
type SplitPlan struct {
	Mode   SplitMode    `json:"mode"`
	Shares []SplitShare `json:"shares"`
}

// SplitGroupPayment allocates the booking total across members. Any rounding
// remainder in an equal split lands on the last member so the member amounts
// always sum to the total exactly.
func (a *Allocator) SplitGroupPayment(ctx context.Context, bookingID string, plan SplitPlan) (model.GroupBooking, error) {
	booking, err := a.groups.Find(ctx, bookingID)
	if err != nil {
		return model.GroupBooking{}, fmt.Errorf("splitGroupPayment: error finding booking %s: %w", bookingID, err)
	}
	if booking.Status != model.GroupBookingPending {
		return model.GroupBooking{}, fmt.Errorf("splitGroupPayment: booking %s is %s: %w", bookingID, booking.Status, ErrInvalidSplit)
	}
	if len(plan.Shares) == 0 {
		return model.GroupBooking{}, fmt.Errorf("splitGroupPayment: empty plan: %w", ErrInvalidSplit)
	}

	members := make([]model.GroupBookingMember, 0, len(plan.Shares))

	switch plan.Mode {
	case SplitEqual:
		n := int64(len(plan.Shares))
		share := booking.TotalAmount.DivRound(decimal.NewFromInt(n), 2)
		assigned := decimal.Zero
		for i, s := range plan.Shares {
			due := share
			if i == len(plan.Shares)-1 {
				due = booking.TotalAmount.Sub(assigned)
			}
			assigned = assigned.Add(due)
			members = append(members, model.GroupBookingMember{
				ID:            uuid.NewString(),
				BookingID:     booking.ID,
				CustomerID:    s.CustomerID,
				AmountDue:     due,
				AmountPaid:    decimal.Zero,
				PaymentStatus: model.MemberPaymentPending,
			})
		}
	case SplitCustom:
		sum := decimal.Zero
		for _, s := range plan.Shares {
			if s.Amount.IsNegative() {
				return model.GroupBooking{}, fmt.Errorf("splitGroupPayment: negative share for %s: %w", s.CustomerID, ErrInvalidSplit)
			}
			sum = sum.Add(s.Amount)
		}
		if !sum.Equal(booking.TotalAmount) {
			return model.GroupBooking{}, fmt.Errorf("splitGroupPayment: shares sum %s != total %s: %w", sum, booking.TotalAmount, ErrInvalidSplit)
		}
		for _, s := range plan.Shares {
			members = append(members, model.GroupBookingMember{
				ID:            uuid.NewString(),
				BookingID:     booking.ID,
				CustomerID:    s.CustomerID,
				AmountDue:     s.Amount,
				AmountPaid:    decimal.Zero,
				PaymentStatus: model.MemberPaymentPending,
			})
		}
	default:
		return model.GroupBooking{}, fmt.Errorf("splitGroupPayment: unknown mode %q: %w", plan.Mode, ErrInvalidSplit)
	}

	booking.Members = members
	if err := a.groups.Update(ctx, booking); err != nil {
		return model.GroupBooking{}, fmt.Errorf("splitGroupPayment: error updating booking: %w", err)
	}
	return booking, nil
}

// RecordMemberPayment applies a payment to one member's share. The booking
// reaches paid only when every member has settled their amount due.
func (a *Allocator) RecordMemberPayment(ctx context.Context, bookingID, memberID string, amount decimal.Decimal) (model.GroupBooking, error) {
	booking, err := a.groups.Find(ctx, bookingID)
	if err != nil {
		return model.GroupBooking{}, fmt.Errorf("recordMemberPayment: error finding booking %s: %w", bookingID, err)
	}
	if booking.Status == model.GroupBookingCancelled {
		return model.GroupBooking{}, fmt.Errorf("recordMemberPayment: booking cancelled: %w", ErrInvalidSplit)
	}

	found := false
	allPaid := true
	anyPaid := false
	for i := range booking.Members {
		m := &booking.Members[i]
		if m.ID == memberID {
			found = true
			m.AmountPaid = m.AmountPaid.Add(amount)
			if m.AmountPaid.GreaterThanOrEqual(m.AmountDue) {
				m.PaymentStatus = model.MemberPaymentPaid
			}
		}
		if m.PaymentStatus == model.MemberPaymentPaid {
			anyPaid = true
		} else {
			allPaid = false
		}
	}
	if !found {
		return model.GroupBooking{}, fmt.Errorf("recordMemberPayment: member %s: %w", memberID, ErrNotFound)
	}

	switch {
	case allPaid:
		booking.Status = model.GroupBookingPaid
	case anyPaid:
		booking.Status = model.GroupBookingPartiallyPaid
	}

	if err := a.groups.Update(ctx, booking); err != nil {
		return model.GroupBooking{}, fmt.Errorf("recordMemberPayment: error updating booking: %w", err)
	}
	return booking, nil
}
