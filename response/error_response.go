package response

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ticketmarket-settlement-backend/logger"
)

type ErrorResponse struct {
	StatusCode  int
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Status      string `json:"status"`
	Description string
}

func (r ErrorResponse) Error() string {
	return fmt.Sprintf("StatusCode: %d, Success: %t, Message: %s, Status: %s, Description: %s", r.StatusCode, r.Success, r.Message, r.Status, r.Description)
}

func (r ErrorResponse) Send(ctx context.Context, w http.ResponseWriter) {
	logger.Errorf(ctx, r.Error())
	w.WriteHeader(r.StatusCode)
	json.NewEncoder(w).Encode(r)
}

func BadRequest(message, description string) ErrorResponse {
	return ErrorResponse{
		StatusCode:  http.StatusBadRequest,
		Success:     false,
		Message:     message,
		Status:      "BAD REQUEST",
		Description: description,
	}
}

func ResourceNotFound(message, description string) ErrorResponse {
	return ErrorResponse{
		StatusCode:  http.StatusNotFound,
		Success:     false,
		Message:     message,
		Status:      "NOT FOUND",
		Description: description,
	}
}

func Unauthorized() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusUnauthorized,
		Success:    false,
		Message:    "No valid Auth Token",
		Status:     "UNAUTHORISED",
	}
}

func SomethingWrong() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusInternalServerError,
		Success:    false,
		Message:    "Sorry, Something went wrong",
		Status:     "SOMETHING_WRONG",
	}
}

func InvalidData(description string) ErrorResponse {
	return ErrorResponse{
		StatusCode:  http.StatusBadRequest,
		Success:     false,
		Message:     "Invalid data passed",
		Status:      "INVALID_DATA",
		Description: description,
	}
}

func SoldOut() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusConflict,
		Success:    false,
		Message:    "Not enough tickets left for this ticket type",
		Status:     "SOLD_OUT",
	}
}

func WindowClosed() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusConflict,
		Success:    false,
		Message:    "Sales window for this ticket type is closed",
		Status:     "WINDOW_CLOSED",
	}
}

func InvalidQuantity() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusBadRequest,
		Success:    false,
		Message:    "Requested quantity is not valid",
		Status:     "INVALID_QUANTITY",
	}
}

func HoldExpired() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusGone,
		Success:    false,
		Message:    "Reservation hold has expired, please reserve again",
		Status:     "HOLD_EXPIRED",
	}
}

func PolicyViolation(description string) ErrorResponse {
	return ErrorResponse{
		StatusCode:  http.StatusUnprocessableEntity,
		Success:     false,
		Message:     "Request violates marketplace policy",
		Status:      "POLICY_VIOLATION",
		Description: description,
	}
}

func PayoutBelowMinimum() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusUnprocessableEntity,
		Success:    false,
		Message:    "Available balance is below the minimum payout",
		Status:     "PAYOUT_BELOW_MINIMUM",
	}
}

func ConfigurationError(description string) ErrorResponse {
	return ErrorResponse{
		StatusCode:  http.StatusInternalServerError,
		Success:     false,
		Message:     "Tax configuration prevents settlement of this order",
		Status:      "CONFIGURATION_ERROR",
		Description: description,
	}
}

func PaymentDeclined(description string) ErrorResponse {
	return ErrorResponse{
		StatusCode:  http.StatusPaymentRequired,
		Success:     false,
		Message:     "Payment was not authorized",
		Status:      "PAYMENT_DECLINED",
		Description: description,
	}
}
