package payout

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fotofair/fotofair-api/internal/pkg/response"
	"github.com/fotofair/fotofair-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type requestPayout struct {
	WalletID    string `json:"wallet_id" validate:"required,uuid"`
	CreatorID   string `json:"creator_id" validate:"required,uuid"`
	Provider    string `json:"provider" validate:"required,provider"`
	Currency    string `json:"currency" validate:"required,len=3"`
	AmountMinor int64  `json:"amount_minor" validate:"required,gt=0"`
}

func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	var req requestPayout
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	walletID, _ := uuid.Parse(req.WalletID)
	creatorID, _ := uuid.Parse(req.CreatorID)

	p, err := h.svc.Request(r.Context(), &Payout{
		WalletID:    walletID,
		CreatorID:   creatorID,
		Provider:    req.Provider,
		Currency:    req.Currency,
		AmountMinor: req.AmountMinor,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "amount_minor must be greater than zero")
		case errors.Is(err, ErrInsufficientBalance):
			response.Conflict(w, "insufficient available balance")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, p)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Complete)
}

func (h *Handler) Fail(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Fail)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) (*Payout, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payout id")
		return
	}

	p, err := fn(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "payout not found")
		case errors.Is(err, ErrNotCompletable):
			response.Conflict(w, "payout is not pending")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, p)
}

// Routes are internal finance endpoints, admin-gated in the router.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/", h.Request)
	r.Post("/{id}/complete", h.Complete)
	r.Post("/{id}/fail", h.Fail)

	return r
}
