package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-checkout/internal/analytics"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/utils"
)

type Handler struct {
	service *analytics.Service
	logger  *logger.Logger
}

func NewHandler(service *analytics.Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// RegisterRoutes mounts the analytics endpoints on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/summary", h.GetSalesSummary)
		r.Get("/daily", h.GetDailySales)
		r.Get("/vouchers", h.GetVoucherUsage)
	})
}

func (h *Handler) GetSalesSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetSalesSummary(r.Context())
	if err != nil {
		h.logger.Error("ANALYTICS", fmt.Sprintf("Failed to compute sales summary: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to compute sales summary", err.Error()))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Sales summary", summary))
}

func (h *Handler) GetDailySales(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid days parameter", raw))
			return
		}
		days = parsed
	}

	metrics, err := h.service.GetDailySales(r.Context(), days)
	if err != nil {
		h.logger.Error("ANALYTICS", fmt.Sprintf("Failed to compute daily sales: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to compute daily sales", err.Error()))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Daily sales", metrics))
}

func (h *Handler) GetVoucherUsage(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.service.GetVoucherUsage(r.Context())
	if err != nil {
		h.logger.Error("ANALYTICS", fmt.Sprintf("Failed to compute voucher usage: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to compute voucher usage", err.Error()))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Voucher usage", metrics))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("ANALYTICS", fmt.Sprintf("Failed to encode response: %v", err))
	}
}
