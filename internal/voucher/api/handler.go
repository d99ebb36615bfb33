package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-checkout/internal/auth"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/voucher"
)

type Handler struct {
	VoucherService *voucher.Service
	Logger         *logger.Logger
}

func NewHandler(voucherService *voucher.Service, log *logger.Logger) *Handler {
	return &Handler{
		VoucherService: voucherService,
		Logger:         log,
	}
}

func (h *Handler) ClaimVoucher(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.ClaimVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Code == "" {
		http.Error(w, "Voucher code cannot be empty", http.StatusBadRequest)
		return
	}

	uv, err := h.VoucherService.Claim(r.Context(), userID, req.Code)
	switch {
	case errors.Is(err, voucher.ErrUnknownCode):
		http.Error(w, "Voucher code does not exist", http.StatusNotFound)
		return
	case errors.Is(err, voucher.ErrVoucherEnded), errors.Is(err, voucher.ErrLimitExhausted):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, voucher.ErrAlreadyClaimed):
		http.Error(w, "You already hold an unused instance of this voucher", http.StatusConflict)
		return
	case err != nil:
		h.Logger.Error("API", fmt.Sprintf("ClaimVoucher: %v", err))
		http.Error(w, "Could not claim voucher", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(uv); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ClaimVoucher: failed to encode response: %v", err))
	}
}

func (h *Handler) ListMyVouchers(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vouchers, err := h.VoucherService.List(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListMyVouchers: %v", err))
		http.Error(w, "Could not load vouchers", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(vouchers); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListMyVouchers: failed to encode response: %v", err))
	}
}
