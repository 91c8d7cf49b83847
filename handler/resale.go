package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ticketmarket-settlement-backend/inventory"
	"ticketmarket-settlement-backend/logger"
	"ticketmarket-settlement-backend/model"
	"ticketmarket-settlement-backend/response"
	"ticketmarket-settlement-backend/settlement"

	"github.com/gorilla/mux"
)

func ListResale(allocator *inventory.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req model.ListResaleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest("invalid request body", fmt.Sprintf("listResale: error unmarshalling request body: %+v", err)).Send(ctx, w)
			return
		}
		if req.Data == nil || req.Data.TicketID == "" {
			response.InvalidData("listResale: no ticket id provided").Send(ctx, w)
			return
		}

		listing, err := allocator.ListResale(ctx, req.Data.TicketID, req.Data.AskingPrice)
		if err != nil {
			switch {
			case errors.Is(err, inventory.ErrPolicyViolation):
				response.PolicyViolation(err.Error()).Send(ctx, w)
			case errors.Is(err, inventory.ErrNotFound):
				response.ResourceNotFound("ticket not found", err.Error()).Send(ctx, w)
			default:
				logger.Errorf(ctx, "listResale: %+v", err)
				response.SomethingWrong().Send(ctx, w)
			}
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{Listing: &listing},
			StatusCode: http.StatusCreated,
		}.Send(w)
	}
}

func CancelResale(allocator *inventory.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		listingID := mux.Vars(r)["listingID"]

		if err := allocator.CancelResale(ctx, listingID); err != nil {
			switch {
			case errors.Is(err, inventory.ErrNotFound):
				response.ResourceNotFound("listing not found", err.Error()).Send(ctx, w)
			case errors.Is(err, inventory.ErrListingNotActive):
				response.InvalidData(err.Error()).Send(ctx, w)
			default:
				logger.Errorf(ctx, "cancelResale: %+v", err)
				response.SomethingWrong().Send(ctx, w)
			}
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}

func SettleResale(orchestrator *settlement.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req model.SettleResaleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest("invalid request body", fmt.Sprintf("settleResale: error unmarshalling request body: %+v", err)).Send(ctx, w)
			return
		}
		if req.Data == nil || req.Data.ListingID == "" || req.Data.BuyerID == "" {
			response.InvalidData("settleResale: listing id and buyer id are required").Send(ctx, w)
			return
		}

		rt, err := orchestrator.SettleResale(ctx, req.Data.ListingID, req.Data.BuyerID)
		if err != nil {
			switch {
			case errors.Is(err, inventory.ErrNotFound):
				response.ResourceNotFound("listing not found", err.Error()).Send(ctx, w)
			case errors.Is(err, inventory.ErrListingNotActive):
				response.InvalidData(err.Error()).Send(ctx, w)
			default:
				logger.Errorf(ctx, "settleResale: %+v", err)
				response.SomethingWrong().Send(ctx, w)
			}
			return
		}

		response.SuccessResponse{
			Data:       &response.Data{Resale: &rt},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}
