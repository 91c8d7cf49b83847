package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ticketmarket-settlement-backend/inventory"
	"ticketmarket-settlement-backend/logger"
	"ticketmarket-settlement-backend/model"
	"ticketmarket-settlement-backend/response"
)

func SplitGroupPayment(allocator *inventory.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req model.SplitGroupPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest("invalid request body", fmt.Sprintf("splitGroupPayment: error unmarshalling request body: %+v", err)).Send(ctx, w)
			return
		}
		if req.Data == nil || req.Data.BookingID == "" {
			response.InvalidData("splitGroupPayment: no booking id provided").Send(ctx, w)
			return
		}

		shares := make([]inventory.SplitShare, 0, len(req.Data.Shares))
		for _, s := range req.Data.Shares {
			shares = append(shares, inventory.SplitShare{CustomerID: s.CustomerID, Amount: s.Amount})
		}

		booking, err := allocator.SplitGroupPayment(ctx, req.Data.BookingID, inventory.SplitPlan{
			Mode:   inventory.SplitMode(req.Data.Mode),
			Shares: shares,
		})
		if err != nil {
			sendGroupError(ctx, w, "splitGroupPayment", err)
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{Booking: &booking},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}

func RecordMemberPayment(allocator *inventory.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req model.MemberPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest("invalid request body", fmt.Sprintf("recordMemberPayment: error unmarshalling request body: %+v", err)).Send(ctx, w)
			return
		}
		if req.Data == nil || req.Data.BookingID == "" || req.Data.MemberID == "" {
			response.InvalidData("recordMemberPayment: booking id and member id are required").Send(ctx, w)
			return
		}

		booking, err := allocator.RecordMemberPayment(ctx, req.Data.BookingID, req.Data.MemberID, req.Data.Amount)
		if err != nil {
			sendGroupError(ctx, w, "recordMemberPayment", err)
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{Booking: &booking},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}

func sendGroupError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		response.ResourceNotFound("booking not found", err.Error()).Send(ctx, w)
	case errors.Is(err, inventory.ErrInvalidSplit):
		response.InvalidData(err.Error()).Send(ctx, w)
	default:
		logger.Errorf(ctx, "%s: %+v", op, err)
		response.SomethingWrong().Send(ctx, w)
	}
}
