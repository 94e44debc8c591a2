package wallet

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fotofair/fotofair-api/internal/middleware"
	"github.com/fotofair/fotofair-api/internal/pkg/response"
	"github.com/fotofair/fotofair-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type ensureRequest struct {
	Provider string `json:"provider" validate:"required,provider"`
	Currency string `json:"currency" validate:"required,len=3"`
}

// Ensure registers the calling creator's payout wallet for a provider.
// Idempotent: repeat calls return the existing active wallet.
func (h *Handler) Ensure(w http.ResponseWriter, r *http.Request) {
	creatorID := middleware.GetUserID(r.Context())
	if creatorID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req ensureRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	wlt, err := h.svc.Ensure(r.Context(), creatorID, Provider(req.Provider), strings.ToUpper(req.Currency))
	if err != nil {
		if errors.Is(err, ErrInvalidProvider) {
			response.BadRequest(w, "unsupported payout provider")
			return
		}
		response.InternalError(w)
		return
	}

	response.Created(w, wlt)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	walletID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid wallet id")
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), walletID)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			response.NotFound(w, "wallet not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, balance)
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.With(middleware.RequireCreator()).Post("/", h.Ensure)
	r.Get("/{id}/balance", h.GetBalance)

	return r
}
