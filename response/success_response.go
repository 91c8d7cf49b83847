package response

import (
	"encoding/json"
	"net/http"

	"ticketmarket-settlement-backend/model"
)

type SuccessResponse struct {
	Data       *Data `json:"data"`
	StatusCode int   `json:"-"`
}

type Data struct {
	Hold      *model.ReservationHold         `json:"hold,omitempty"`
	Order     *model.Order                   `json:"order,omitempty"`
	Tickets   []model.Ticket                 `json:"tickets,omitempty"`
	Breakdown *model.TaxBreakdown            `json:"tax_breakdown,omitempty"`
	Payout    *model.MarketplacePayout       `json:"payout,omitempty"`
	Listing   *model.ResaleListing           `json:"listing,omitempty"`
	Resale    *model.ResaleTransaction       `json:"resale,omitempty"`
	Booking   *model.GroupBooking            `json:"booking,omitempty"`
	Balance   *string                        `json:"balance,omitempty"`
	Quota     *int64                         `json:"quota,omitempty"`
	Records   []model.TaxCollectionRecord    `json:"tax_records,omitempty"`
	Entries   []model.MarketplaceTransaction `json:"transactions,omitempty"`
}

func (r SuccessResponse) Send(w http.ResponseWriter) {
	w.WriteHeader(r.StatusCode)
	json.NewEncoder(w).Encode(r)
}
