package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aretimiss/queuematic/internal/lifecycle"
	"github.com/aretimiss/queuematic/internal/models"
	"github.com/aretimiss/queuematic/internal/remote"
)

// Core is the lifecycle surface the presentation layer drives.
type Core interface {
	Register(ctx context.Context, idCardNumber string) (models.Ticket, error)
	Cancel(ctx context.Context, confirmed bool) error
	RefreshStatus(ctx context.Context) (models.QueueStatusSnapshot, error)
	SwitchDisplayMode(mode lifecycle.DisplayMode) error
	ToggleSound(ctx context.Context) (bool, error)
	SetBrowserPermission(ctx context.Context, granted bool) error
	State() lifecycle.View
}

type Handler struct {
	core      Core
	authority remote.QueueAuthority
	adminHash string
}

type Options struct {
	// AdminTokenHash is the bcrypt hash guarding the administrative
	// update-status route. Empty disables the route.
	AdminTokenHash string
}

func NewHandler(core Core, authority remote.QueueAuthority, options Options) *Handler {
	return &Handler{core: core, authority: authority, adminHash: options.AdminTokenHash}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/queue", h.handleState)
	mux.HandleFunc("/api/queue/register", h.handleRegister)
	mux.HandleFunc("/api/queue/cancel", h.handleCancel)
	mux.HandleFunc("/api/queue/refresh", h.handleRefresh)
	mux.HandleFunc("/api/display-mode", h.handleDisplayMode)
	mux.HandleFunc("/api/preferences/sound", h.handleSound)
	mux.HandleFunc("/api/preferences/notifications", h.handleNotifications)
	mux.HandleFunc("/api/admin/queue-status", h.handleAdminUpdateStatus)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.core.State())
}

type registerRequest struct {
	IDCardNumber string `json:"id_card_number"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.IDCardNumber = strings.TrimSpace(req.IDCardNumber)

	ticket, err := h.core.Register(r.Context(), req.IDCardNumber)
	if err != nil {
		h.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

type cancelRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	if err := h.core.Cancel(r.Context(), req.Confirm); err != nil {
		h.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.core.State())
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	snap, err := h.core.RefreshStatus(r.Context())
	if err != nil {
		h.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type displayModeRequest struct {
	Mode string `json:"mode"`
}

func (h *Handler) handleDisplayMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req displayModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	if err := h.core.SwitchDisplayMode(lifecycle.DisplayMode(req.Mode)); err != nil {
		h.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.core.State())
}

func (h *Handler) handleSound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	enabled, err := h.core.ToggleSound(r.Context())
	if err != nil {
		h.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sound_enabled": enabled})
}

type notificationsRequest struct {
	Granted bool `json:"granted"`
}

func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req notificationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	if err := h.core.SetBrowserPermission(r.Context(), req.Granted); err != nil {
		h.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.core.State())
}

type adminUpdateRequest struct {
	QueueNumber    int    `json:"queue_number"`
	Status         string `json:"status"`
	NextDepartment string `json:"next_department"`
}

// handleAdminUpdateStatus relays a staff-side status change to the authority.
// It is not part of the visitor lifecycle.
func (h *Handler) handleAdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.authorizeAdmin(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid admin token")
		return
	}

	var req adminUpdateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if req.QueueNumber <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "queue_number must be positive")
		return
	}
	if !models.IsValidStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown status")
		return
	}

	ok, err := h.authority.UpdateStatus(r.Context(), req.QueueNumber, req.Status, req.NextDepartment)
	if err != nil {
		h.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
}

func (h *Handler) writeCoreError(w http.ResponseWriter, err error) {
	var netErr *remote.NetworkError
	switch {
	case errors.Is(err, remote.ErrInvalidIDCard):
		writeError(w, http.StatusBadRequest, "invalid_id_card", err.Error())
	case errors.Is(err, lifecycle.ErrTicketActive):
		writeError(w, http.StatusConflict, "ticket_active", err.Error())
	case errors.Is(err, lifecycle.ErrNoActiveTicket):
		writeError(w, http.StatusConflict, "no_active_ticket", err.Error())
	case errors.Is(err, lifecycle.ErrConfirmRequired):
		writeError(w, http.StatusConflict, "confirm_required", err.Error())
	case errors.Is(err, lifecycle.ErrInvalidMode):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.As(err, &netErr):
		writeError(w, http.StatusBadGateway, "authority_unavailable", "queue authority unavailable, try again")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: responseError{Code: code, Message: message}})
}
