package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fjod/go_bookstore/internal/basket"
	"github.com/fjod/go_bookstore/internal/repository"
	"github.com/fjod/go_bookstore/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error    string   `json:"error"`
	Code     string   `json:"code,omitempty"`
	Details  string   `json:"details,omitempty"`
	Problems []string `json:"problems,omitempty"`
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, logger *zap.Logger, status int, code, message string) {
	respondJSON(w, logger, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// respondServiceError maps errors returned by the service layer to HTTP
// responses. Anything unrecognised is logged and reported as a 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	if ve, ok := service.IsValidationError(err); ok {
		respondJSON(w, logger, http.StatusUnprocessableEntity, ErrorResponse{
			Error:    ve.Error(),
			Code:     "validation_failed",
			Problems: ve.Problems,
		})
		return
	}

	var status int
	var code string
	switch {
	case errors.Is(err, repository.ErrBookNotFound):
		status, code = http.StatusNotFound, "book_not_found"
	case errors.Is(err, repository.ErrOrderNotFound):
		status, code = http.StatusNotFound, "order_not_found"
	case errors.Is(err, basket.ErrItemNotFound):
		status, code = http.StatusNotFound, "item_not_found"
	case errors.Is(err, basket.ErrInvalidQuantity):
		status, code = http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, service.ErrInvalidReview):
		status, code = http.StatusBadRequest, "invalid_review"
	case errors.Is(err, service.ErrInvalidPrice):
		status, code = http.StatusBadRequest, "invalid_price"
	case errors.Is(err, service.ErrUnknownBook):
		status, code = http.StatusConflict, "unknown_book"
	default:
		logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", getRequestID(r.Context())),
			zap.Error(err))
		respondError(w, logger, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondError(w, logger, status, code, err.Error())
}

func positiveIDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
