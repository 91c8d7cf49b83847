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
	"ticketmarket-settlement-backend/settlement"
	"ticketmarket-settlement-backend/tax"
)

func ReserveTickets(orchestrator *settlement.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req model.ReserveTicketsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest("invalid request body", fmt.Sprintf("reserveTickets: error unmarshalling request body: %+v", err)).Send(ctx, w)
			return
		}
		if req.Data == nil || len(req.Data.Lines) == 0 {
			response.InvalidData("reserveTickets: no order lines provided").Send(ctx, w)
			return
		}

		lines := make([]settlement.LineRequest, 0, len(req.Data.Lines))
		for _, l := range req.Data.Lines {
			lines = append(lines, settlement.LineRequest{TicketTypeID: l.TicketTypeID, Quantity: l.Quantity})
		}

		order, err := orchestrator.ReserveTickets(ctx, settlement.ReservationRequest{
			CustomerID:  req.Data.CustomerID,
			OrganizerID: req.Data.OrganizerID,
			TenantID:    req.Data.TenantID,
			EventID:     req.Data.EventID,
			Currency:    req.Data.Currency,
			Lines:       lines,
		})
		if err != nil {
			sendReservationError(ctx, w, err)
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{Order: &order},
			StatusCode: http.StatusCreated,
		}.Send(w)
	}
}

func ConfirmOrder(orchestrator *settlement.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req model.ConfirmOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest("invalid request body", fmt.Sprintf("confirmOrder: error unmarshalling request body: %+v", err)).Send(ctx, w)
			return
		}
		if req.Data == nil || req.Data.OrderID == "" {
			response.InvalidData("confirmOrder: no order id provided").Send(ctx, w)
			return
		}

		order, tickets, breakdown, err := orchestrator.ConfirmOrder(ctx, req.Data.OrderID, req.Data.PaymentToken)
		if err != nil {
			sendConfirmError(ctx, w, err)
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{Order: &order, Tickets: tickets, Breakdown: &breakdown},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}

func CancelOrder(orchestrator *settlement.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req model.CancelOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest("invalid request body", fmt.Sprintf("cancelOrder: error unmarshalling request body: %+v", err)).Send(ctx, w)
			return
		}
		if req.Data == nil || req.Data.OrderID == "" {
			response.InvalidData("cancelOrder: no order id provided").Send(ctx, w)
			return
		}

		order, err := orchestrator.CancelOrder(ctx, req.Data.OrderID)
		if err != nil {
			switch {
			case errors.Is(err, settlement.ErrNotFound):
				response.ResourceNotFound("order not found", err.Error()).Send(ctx, w)
			case errors.Is(err, settlement.ErrOrderState):
				response.InvalidData(err.Error()).Send(ctx, w)
			default:
				logger.Errorf(ctx, "cancelOrder: %+v", err)
				response.SomethingWrong().Send(ctx, w)
			}
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{Order: &order},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}

func sendReservationError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, inventory.ErrSoldOut):
		response.SoldOut().Send(ctx, w)
	case errors.Is(err, inventory.ErrWindowClosed):
		response.WindowClosed().Send(ctx, w)
	case errors.Is(err, inventory.ErrInvalidQuantity):
		response.InvalidQuantity().Send(ctx, w)
	case errors.Is(err, inventory.ErrNotFound):
		response.ResourceNotFound("ticket type not found", err.Error()).Send(ctx, w)
	default:
		logger.Errorf(ctx, "reserveTickets: %+v", err)
		response.SomethingWrong().Send(ctx, w)
	}
}

func sendConfirmError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settlement.ErrNotFound):
		response.ResourceNotFound("order not found", err.Error()).Send(ctx, w)
	case errors.Is(err, settlement.ErrOrderState):
		response.InvalidData(err.Error()).Send(ctx, w)
	case errors.Is(err, settlement.ErrPaymentDeclined):
		response.PaymentDeclined(err.Error()).Send(ctx, w)
	case errors.Is(err, inventory.ErrHoldExpired):
		response.HoldExpired().Send(ctx, w)
	case errors.Is(err, tax.ErrUnresolvableJurisdiction), errors.Is(err, tax.ErrConfiguration):
		response.ConfigurationError(err.Error()).Send(ctx, w)
	default:
		logger.Errorf(ctx, "confirmOrder: %+v", err)
		response.SomethingWrong().Send(ctx, w)
	}
}
