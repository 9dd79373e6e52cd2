package handlers

import (
	"context"
	"net/http"

	"github.com/evotar/apiserver/internal/services"
	"github.com/evotar/apiserver/internal/session"
	"github.com/go-chi/chi/v5"
)

type WalletManager interface {
	GenerateUserMnemonic(ctx context.Context, sess session.Session) (services.WalletInfo, error)
	GetUserMnemonic(ctx context.Context, sess session.Session) (services.WalletInfo, error)
	GetUserWalletAddress(ctx context.Context, sess session.Session) (string, error)
}

type WalletHandler struct {
	wallets WalletManager
}

func NewWalletHandler(wallets WalletManager) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

func WalletRouter(r chi.Router, h *WalletHandler) {
	r.Use(RequireSession)
	r.Post("/mnemonic", h.GenerateMnemonic)
	r.Get("/mnemonic", h.GetMnemonic)
	r.Get("/address", h.GetAddress)
}

// GenerateMnemonic replaces the caller's wallet and returns the new phrase.
func (h *WalletHandler) GenerateMnemonic(w http.ResponseWriter, r *http.Request) {
	info, err := h.wallets.GenerateUserMnemonic(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, "Failed to generate wallet")
		return
	}
	writeOK(w, http.StatusCreated, envelope{"wallet": info})
}

func (h *WalletHandler) GetMnemonic(w http.ResponseWriter, r *http.Request) {
	info, err := h.wallets.GetUserMnemonic(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch wallet")
		return
	}
	writeOK(w, http.StatusOK, envelope{"wallet": info})
}

func (h *WalletHandler) GetAddress(w http.ResponseWriter, r *http.Request) {
	address, err := h.wallets.GetUserWalletAddress(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch wallet address")
		return
	}
	writeOK(w, http.StatusOK, envelope{"address": address})
}
