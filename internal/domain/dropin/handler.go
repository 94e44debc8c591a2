package dropin

import (
	"net/http"

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

// Consume deducts credits for a gated action. Insufficient credits is a
// normal outcome, surfaced as consumed=false with 409, never a 500.
func (h *Handler) Consume(w http.ResponseWriter, r *http.Request) {
	attendeeID := middleware.GetUserID(r.Context())
	if attendeeID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req ConsumeRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	result, err := h.svc.Consume(r.Context(), ConsumeInput{
		AttendeeID:    attendeeID,
		Action:        req.Action,
		CreditsNeeded: req.CreditsNeeded,
		SourceID:      req.SourceID,
		Meta:          Meta(req.Metadata),
	})
	if err != nil {
		response.InternalError(w)
		return
	}

	if !result.Consumed {
		response.JSON(w, http.StatusConflict, result)
		return
	}
	response.OK(w, result)
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	attendeeID := middleware.GetUserID(r.Context())
	if attendeeID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	available, err := h.svc.AvailableCredits(r.Context(), attendeeID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, BalanceResponse{AvailableCredits: available})
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	attendeeID := middleware.GetUserID(r.Context())
	if attendeeID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req PurchaseRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	lot, err := h.svc.GrantLot(r.Context(), attendeeID, req.Credits, req.ExpiresAt)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, lot)
}

// Normalize is the admin identity-merge endpoint.
func (h *Handler) Normalize(w http.ResponseWriter, r *http.Request) {
	var req NormalizeRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	canonicalID, err := uuid.Parse(req.CanonicalID)
	if err != nil {
		response.BadRequest(w, "invalid canonical_id")
		return
	}

	aliasIDs := make([]uuid.UUID, 0, len(req.AliasIDs))
	for _, raw := range req.AliasIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(w, "invalid alias id: "+raw)
			return
		}
		if id == canonicalID {
			response.BadRequest(w, "canonical_id cannot be an alias of itself")
			return
		}
		aliasIDs = append(aliasIDs, id)
	}

	available, err := h.svc.NormalizeOwnership(r.Context(), canonicalID, aliasIDs)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, BalanceResponse{AvailableCredits: available})
}
