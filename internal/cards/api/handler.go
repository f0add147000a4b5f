package api

import (
	"net/http"
	"strings"
	"time"

	"bankcards/internal/cards/application"
	"bankcards/internal/cards/domain"
	"bankcards/internal/common/auth"
	"bankcards/internal/common/logging"
)

const maxIdempotencyKeyLength = 255

// Handler implements the HTTP handlers for cards, transfers and accounts.
type Handler struct {
	cards     *application.CardService
	transfers *application.TransferService
	users     *application.UserService
	auth      *auth.Middleware
}

// NewHandler creates a new Handler.
func NewHandler(
	cards *application.CardService,
	transfers *application.TransferService,
	users *application.UserService,
	authMiddleware *auth.Middleware,
) *Handler {
	return &Handler{
		cards:     cards,
		transfers: transfers,
		users:     users,
		auth:      authMiddleware,
	}
}

// RegisterRoutes registers the API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/register", h.Register)
	mux.HandleFunc("POST /auth/login", h.Login)

	mux.Handle("GET /api/me", h.authenticated(h.Me))
	mux.Handle("GET /api/cards", h.authenticated(h.ListCards))
	mux.Handle("GET /api/cards/{id}", h.authenticated(h.GetCard))
	mux.Handle("GET /api/cards/{id}/balance", h.authenticated(h.GetCardBalance))
	mux.Handle("POST /api/cards/{id}/request-block", h.authenticated(h.RequestBlock))
	mux.Handle("POST /api/transfers", h.authenticated(h.CreateTransfer))
	mux.Handle("GET /api/transfers/{id}", h.authenticated(h.GetTransfer))

	mux.Handle("GET /api/admin/cards", h.admin(h.AdminListCards))
	mux.Handle("GET /api/admin/cards/pending-block", h.admin(h.AdminListPendingBlock))
	mux.Handle("POST /api/admin/cards", h.admin(h.AdminCreateCard))
	mux.Handle("PATCH /api/admin/cards/{id}/status", h.admin(h.AdminUpdateCardStatus))
	mux.Handle("DELETE /api/admin/cards/{id}", h.admin(h.AdminDeleteCard))
}

func (h *Handler) authenticated(fn http.HandlerFunc) http.Handler {
	return h.auth.Authenticate(fn)
}

func (h *Handler) admin(fn http.HandlerFunc) http.Handler {
	return h.auth.Authenticate(h.auth.RequireRole(fn, domain.RoleAdmin.String()))
}

// currentUser returns the authenticated caller. Routes are wrapped by Authenticate,
// so a missing principal means a wiring error.
func currentUser(r *http.Request) (domain.UserID, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return domain.UserID{}, false
	}
	return domain.UserID(p.UserID), true
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	resp, err := h.users.Register(r.Context(), application.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	resp, err := h.users.Login(r.Context(), application.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Me handles GET /api/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	resp, err := h.users.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListCards handles GET /api/cards?search=&page=&size=.
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}
	page, size, err := pageParams(r)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	resp, err := h.cards.GetUserCards(r.Context(), application.GetUserCardsRequest{
		UserID: userID,
		Search: r.URL.Query().Get("search"),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetCard handles GET /api/cards/{id}.
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}
	cardID, err := domain.ParseCardID(r.PathValue("id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}

	resp, err := h.cards.GetUserCard(r.Context(), userID, cardID)
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetCardBalance handles GET /api/cards/{id}/balance.
func (h *Handler) GetCardBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}
	cardID, err := domain.ParseCardID(r.PathValue("id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}

	resp, err := h.cards.GetUserCardBalance(r.Context(), userID, cardID)
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// RequestBlock handles POST /api/cards/{id}/request-block.
func (h *Handler) RequestBlock(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}
	cardID, err := domain.ParseCardID(r.PathValue("id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}

	resp, err := h.cards.RequestBlock(r.Context(), application.RequestBlockRequest{
		UserID:        userID,
		CardID:        cardID,
		CorrelationID: logging.CorrelationIDFromContext(r.Context()),
	})
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateTransfer handles POST /api/transfers.
// An optional Idempotency-Key header makes retries safe.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	var req TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	fromID, err := domain.ParseCardID(req.FromCardID)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	toID, err := domain.ParseCardID(req.ToCardID)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if len(idempotencyKey) > maxIdempotencyKeyLength {
		writeError(w, http.StatusBadRequest, domain.CodeValidation, "Idempotency-Key is too long")
		return
	}

	resp, err := h.transfers.Transfer(r.Context(), application.TransferRequest{
		UserID:         userID,
		FromCardID:     fromID,
		ToCardID:       toID,
		Amount:         req.Amount,
		IdempotencyKey: idempotencyKey,
		CorrelationID:  logging.CorrelationIDFromContext(r.Context()),
	})
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// GetTransfer handles GET /api/transfers/{id}.
func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}
	transferID, err := domain.ParseTransferID(r.PathValue("id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}

	resp, err := h.transfers.GetUserTransfer(r.Context(), userID, transferID)
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// AdminListCards handles GET /api/admin/cards?owner_id=&status=&page=&size=.
func (h *Handler) AdminListCards(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	req := application.GetAllCardsRequest{Page: page, Size: size}
	if raw := r.URL.Query().Get("owner_id"); raw != "" {
		ownerID, err := domain.ParseUserID(raw)
		if err != nil {
			writeValidationError(w, err)
			return
		}
		req.OwnerID = &ownerID
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseCardStatus(raw)
		if err != nil {
			writeValidationError(w, err)
			return
		}
		req.Status = &status
	}

	resp, err := h.cards.GetAll(r.Context(), req)
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// AdminListPendingBlock handles GET /api/admin/cards/pending-block.
func (h *Handler) AdminListPendingBlock(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	resp, err := h.cards.GetPendingBlock(r.Context(), page, size)
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// AdminCreateCard handles POST /api/admin/cards.
func (h *Handler) AdminCreateCard(w http.ResponseWriter, r *http.Request) {
	var req CreateCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	ownerID, err := domain.ParseUserID(req.OwnerID)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	expiresAt, err := time.Parse(time.DateOnly, req.ExpiresAt)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	resp, err := h.cards.Create(r.Context(), application.CreateCardRequest{
		OwnerID:       ownerID,
		Number:        req.Number,
		ExpiresAt:     expiresAt,
		Balance:       req.Balance,
		CorrelationID: logging.CorrelationIDFromContext(r.Context()),
	})
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// AdminUpdateCardStatus handles PATCH /api/admin/cards/{id}/status.
func (h *Handler) AdminUpdateCardStatus(w http.ResponseWriter, r *http.Request) {
	cardID, err := domain.ParseCardID(r.PathValue("id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}

	var req UpdateCardStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	status, err := domain.ParseCardStatus(req.Status)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	resp, err := h.cards.UpdateStatus(r.Context(), application.UpdateCardStatusRequest{
		CardID:        cardID,
		Status:        status,
		CorrelationID: logging.CorrelationIDFromContext(r.Context()),
	})
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// AdminDeleteCard handles DELETE /api/admin/cards/{id}.
func (h *Handler) AdminDeleteCard(w http.ResponseWriter, r *http.Request) {
	cardID, err := domain.ParseCardID(r.PathValue("id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}

	err = h.cards.Delete(r.Context(), application.DeleteCardRequest{
		CardID:        cardID,
		CorrelationID: logging.CorrelationIDFromContext(r.Context()),
	})
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
