package transaction

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

type createRequest struct {
	WalletID   string `json:"wallet_id" validate:"required,uuid"`
	CreatorID  string `json:"creator_id" validate:"required,uuid"`
	AttendeeID string `json:"attendee_id" validate:"required,uuid"`
	FlowType   string `json:"flow_type" validate:"required,oneof=photo_purchase tip subscription_charge"`
	Provider   string `json:"provider" validate:"required,provider"`
	Currency   string `json:"currency" validate:"required,len=3"`
	GrossMinor int64  `json:"gross_minor" validate:"required,gt=0"`
}

// Create records a pending charge. Called by the payment confirmation flow
// once the provider accepted the charge.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
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
	attendeeID, _ := uuid.Parse(req.AttendeeID)

	t, err := h.svc.Create(r.Context(), CreateInput{
		WalletID:   walletID,
		CreatorID:  creatorID,
		AttendeeID: attendeeID,
		FlowType:   FlowType(req.FlowType),
		Provider:   req.Provider,
		Currency:   req.Currency,
		GrossMinor: req.GrossMinor,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			response.BadRequest(w, "gross_minor must be greater than zero")
			return
		}
		response.InternalError(w)
		return
	}

	response.Created(w, t)
}

func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Settle)
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Refund)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) (*Transaction, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid transaction id")
		return
	}

	t, err := fn(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "transaction not found")
		case errors.Is(err, ErrNotSettleable), errors.Is(err, ErrNotRefundable):
			response.Conflict(w, err.Error())
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, t)
}

// Routes are internal finance endpoints, admin-gated in the router.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/", h.Create)
	r.Post("/{id}/settle", h.Settle)
	r.Post("/{id}/refund", h.Refund)

	return r
}
