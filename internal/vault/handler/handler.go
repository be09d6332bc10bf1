// Package handler is the thin HTTP layer over the vault service. It
// delegates to the service without embedding business logic so transport
// concerns remain isolated.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scrip/internal/vault/models"
	"scrip/pkg/domain"
	dErrors "scrip/pkg/domain-errors"
	"scrip/pkg/requestcontext"
)

// VaultService is the service surface the transport consumes.
type VaultService interface {
	InitializeVault(ctx context.Context, authority domain.Address) (*models.Vault, error)
	GetVault(ctx context.Context, vaultID domain.VaultID) (*models.Vault, error)
	AddClient(ctx context.Context, vaultID domain.VaultID, caller, address domain.Address) (*models.RoleEntry, error)
	AddMerchant(ctx context.Context, vaultID domain.VaultID, caller, address domain.Address) (*models.RoleEntry, error)
	RemoveRole(ctx context.Context, vaultID domain.VaultID, caller, address domain.Address) error
	Deposit(ctx context.Context, vaultID domain.VaultID, caller domain.Address, reserveAmount uint64) (uint64, error)
	Transfer(ctx context.Context, vaultID domain.VaultID, sender, recipient domain.Address, amount uint64) error
	Settle(ctx context.Context, vaultID domain.VaultID, caller domain.Address, voucherAmount uint64) (uint64, error)
}

type Handler struct {
	svc    VaultService
	logger *slog.Logger
}

func New(svc VaultService, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register wires the vault routes onto a router that already carries the
// auth middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/vaults", h.handleInitializeVault)
	r.Get("/vaults/{vaultID}", h.handleGetVault)
	r.Post("/vaults/{vaultID}/clients", h.handleAddClient)
	r.Post("/vaults/{vaultID}/merchants", h.handleAddMerchant)
	r.Delete("/vaults/{vaultID}/roles/{address}", h.handleRemoveRole)
	r.Post("/vaults/{vaultID}/deposits", h.handleDeposit)
	r.Post("/vaults/{vaultID}/transfers", h.handleTransfer)
	r.Post("/vaults/{vaultID}/settlements", h.handleSettle)
}

func (h *Handler) handleInitializeVault(w http.ResponseWriter, r *http.Request) {
	caller := requestcontext.Caller(r.Context())
	v, err := h.svc.InitializeVault(r.Context(), caller)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleGetVault(w http.ResponseWriter, r *http.Request) {
	vaultID, err := domain.ParseVaultID(chi.URLParam(r, "vaultID"))
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	v, err := h.svc.GetVault(r.Context(), vaultID)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleAddClient(w http.ResponseWriter, r *http.Request) {
	h.handleAddRole(w, r, h.svc.AddClient)
}

func (h *Handler) handleAddMerchant(w http.ResponseWriter, r *http.Request) {
	h.handleAddRole(w, r, h.svc.AddMerchant)
}

func (h *Handler) handleAddRole(w http.ResponseWriter, r *http.Request,
	add func(context.Context, domain.VaultID, domain.Address, domain.Address) (*models.RoleEntry, error)) {

	vaultID, err := domain.ParseVaultID(chi.URLParam(r, "vaultID"))
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	var req addRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	address, err := domain.ParseAddress(req.Address)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	entry, err := add(r.Context(), vaultID, requestcontext.Caller(r.Context()), address)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleRemoveRole(w http.ResponseWriter, r *http.Request) {
	vaultID, err := domain.ParseVaultID(chi.URLParam(r, "vaultID"))
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	address, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	if err := h.svc.RemoveRole(r.Context(), vaultID, requestcontext.Caller(r.Context()), address); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	vaultID, err := domain.ParseVaultID(chi.URLParam(r, "vaultID"))
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	voucherAmount, err := h.svc.Deposit(r.Context(), vaultID, requestcontext.Caller(r.Context()), req.Amount)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, depositResponse{VoucherAmount: voucherAmount})
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	vaultID, err := domain.ParseVaultID(chi.URLParam(r, "vaultID"))
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	recipient, err := domain.ParseAddress(req.Recipient)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	if err := h.svc.Transfer(r.Context(), vaultID, requestcontext.Caller(r.Context()), recipient, req.Amount); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSettle(w http.ResponseWriter, r *http.Request) {
	vaultID, err := domain.ParseVaultID(chi.URLParam(r, "vaultID"))
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	var req settleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	reserveAmount, err := h.svc.Settle(r.Context(), vaultID, requestcontext.Caller(r.Context()), req.Amount)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, settleResponse{ReserveAmount: reserveAmount})
}

// writeError centralizes domain error translation to HTTP responses.
// The code reaches the caller verbatim so client software can distinguish
// "fix your input" from "you are not authorized" from an invariant breach.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)

	message := ""
	var de *dErrors.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		message = "internal error"
	}

	writeJSON(w, status, errorResponse{Error: string(code), Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return dErrors.New(dErrors.CodeValidation, "invalid request body")
	}
	return nil
}
