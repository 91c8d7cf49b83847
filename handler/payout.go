package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ticketmarket-settlement-backend/ledger"
	"ticketmarket-settlement-backend/logger"
	"ticketmarket-settlement-backend/model"
	"ticketmarket-settlement-backend/response"
	"ticketmarket-settlement-backend/settlement"

	"github.com/gorilla/mux"
)

func RequestPayout(orchestrator *settlement.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req model.RequestPayoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest("invalid request body", fmt.Sprintf("requestPayout: error unmarshalling request body: %+v", err)).Send(ctx, w)
			return
		}
		if req.Data == nil || req.Data.OrganizerID == "" {
			response.InvalidData("requestPayout: no organizer id provided").Send(ctx, w)
			return
		}

		payout, err := orchestrator.RequestPayout(ctx, req.Data.OrganizerID, req.Data.Currency, req.Data.PeriodStart, req.Data.PeriodEnd)
		if err != nil {
			switch {
			case errors.Is(err, ledger.ErrBelowMinimum):
				response.PayoutBelowMinimum().Send(ctx, w)
			case errors.Is(err, ledger.ErrOrganizerHalted), errors.Is(err, ledger.ErrLedgerInconsistent):
				logger.Errorf(ctx, "requestPayout: %+v", err)
				response.SomethingWrong().Send(ctx, w)
			default:
				logger.Errorf(ctx, "requestPayout: %+v", err)
				response.SomethingWrong().Send(ctx, w)
			}
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{Payout: &payout},
			StatusCode: http.StatusCreated,
		}.Send(w)
	}
}

// PayoutTransition handles approve/process/complete/fail/reject/cancel via
// the action path segment.
func PayoutTransition(poster *ledger.Poster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		vars := mux.Vars(r)
		payoutID := vars["payoutID"]
		action := vars["action"]

		var payout model.MarketplacePayout
		var err error
		switch action {
		case "approve":
			payout, err = poster.ApprovePayout(ctx, payoutID)
		case "process":
			payout, err = poster.ProcessPayout(ctx, payoutID)
		case "complete":
			payout, err = poster.CompletePayout(ctx, payoutID)
		case "fail":
			payout, err = poster.FailPayout(ctx, payoutID)
		case "reject":
			payout, err = poster.RejectPayout(ctx, payoutID)
		case "cancel":
			payout, err = poster.CancelPayout(ctx, payoutID)
		default:
			response.InvalidData(fmt.Sprintf("payoutTransition: unknown action %q", action)).Send(ctx, w)
			return
		}

		if err != nil {
			switch {
			case errors.Is(err, ledger.ErrNotFound):
				response.ResourceNotFound("payout not found", err.Error()).Send(ctx, w)
			case errors.Is(err, ledger.ErrInvalidTransition):
				response.InvalidData(err.Error()).Send(ctx, w)
			default:
				logger.Errorf(ctx, "payoutTransition: %+v", err)
				response.SomethingWrong().Send(ctx, w)
			}
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{Payout: &payout},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}
