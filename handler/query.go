package handler

import (
	"errors"
	"net/http"

	"ticketmarket-settlement-backend/inventory"
	"ticketmarket-settlement-backend/ledger"
	"ticketmarket-settlement-backend/logger"
	"ticketmarket-settlement-backend/response"
	"ticketmarket-settlement-backend/settlement"

	"github.com/gorilla/mux"
)

func GetAvailableQuota(orchestrator *settlement.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ticketTypeID := mux.Vars(r)["ticketTypeID"]

		quota, err := orchestrator.AvailableQuota(ctx, ticketTypeID)
		if err != nil {
			if errors.Is(err, inventory.ErrNotFound) {
				response.ResourceNotFound("ticket type not found", err.Error()).Send(ctx, w)
				return
			}
			logger.Errorf(ctx, "getAvailableQuota: %+v", err)
			response.SomethingWrong().Send(ctx, w)
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{Quota: &quota},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}

func GetOrganizerBalance(orchestrator *settlement.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		organizerID := mux.Vars(r)["organizerID"]

		balance, err := orchestrator.OrganizerBalance(ctx, organizerID)
		if err != nil {
			if errors.Is(err, ledger.ErrLedgerInconsistent) {
				logger.Errorf(ctx, "getOrganizerBalance: %+v", err)
			}
			response.SomethingWrong().Send(ctx, w)
			return
		}

		s := balance.String()
		response.SuccessResponse{
			Data:       &response.Data{Balance: &s},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}

func GetOrganizerStatement(orchestrator *settlement.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		organizerID := mux.Vars(r)["organizerID"]

		rows, err := orchestrator.OrganizerStatement(ctx, organizerID)
		if err != nil {
			logger.Errorf(ctx, "getOrganizerStatement: %+v", err)
			response.SomethingWrong().Send(ctx, w)
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{Entries: rows},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}

func GetTaxBreakdown(orchestrator *settlement.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID := mux.Vars(r)["orderID"]

		records, err := orchestrator.TaxRecords(ctx, orderID)
		if err != nil {
			logger.Errorf(ctx, "getTaxBreakdown: %+v", err)
			response.SomethingWrong().Send(ctx, w)
			return
		}
		if len(records) == 0 {
			response.ResourceNotFound("no tax records for order", "").Send(ctx, w)
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{Records: records},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}

func GetOrder(orchestrator *settlement.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID := mux.Vars(r)["orderID"]

		order, err := orchestrator.Order(ctx, orderID)
		if err != nil {
			if errors.Is(err, settlement.ErrNotFound) {
				response.ResourceNotFound("order not found", err.Error()).Send(ctx, w)
				return
			}
			logger.Errorf(ctx, "getOrder: %+v", err)
			response.SomethingWrong().Send(ctx, w)
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{Order: &order},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}
