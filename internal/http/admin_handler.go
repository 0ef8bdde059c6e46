package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_bookstore/internal/cachecheck"
	"go.uber.org/zap"
)

type CacheCheckTrigger interface {
	TriggerMode(ctx context.Context, fix bool) (*cachecheck.Report, error)
}

type AdminHandler struct {
	checks  CacheCheckTrigger
	timeout time.Duration
	logger  *zap.Logger
}

func NewAdminHandler(checks CacheCheckTrigger, timeout time.Duration, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{checks: checks, timeout: timeout, logger: logger}
}

// POST /api/v1/admin/cache-check?fix=true
func (h *AdminHandler) RunCacheCheck(w http.ResponseWriter, r *http.Request) {
	fix := false
	if v := r.URL.Query().Get("fix"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, h.logger, http.StatusBadRequest, "invalid_fix", "fix must be a boolean")
			return
		}
		fix = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report, err := h.checks.TriggerMode(ctx, fix)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			respondError(w, h.logger, http.StatusGatewayTimeout, "timeout", "cache check still running")
			return
		}
		if cachecheck.IsCancelled(err) {
			respondError(w, h.logger, http.StatusServiceUnavailable, "cancelled", "cache check cancelled")
			return
		}
		respondServiceError(w, r, h.logger, err)
		return
	}

	// coalesced triggers share the report
	resp := *report
	if resp.Discrepancies == nil {
		resp.Discrepancies = []cachecheck.Discrepancy{}
	}
	respondJSON(w, h.logger, http.StatusOK, resp)
}
