package finaudit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/fotofair/fotofair-api/internal/pkg/response"
)

// Archiver persists a finished report to long-term storage. Optional.
type Archiver interface {
	Archive(ctx context.Context, report *Report) (string, error)
}

type Handler struct {
	svc      *Service
	archiver Archiver
}

func NewHandler(svc *Service, archiver Archiver) *Handler {
	return &Handler{svc: svc, archiver: archiver}
}

// Run executes the reconciliation audit. Parameters come from the query
// string; anything absent or out of range falls back to defaults.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := Params{
		LookbackDays:     queryInt(q.Get("lookbackDays")),
		TransactionLimit: queryInt(q.Get("transactionLimit")),
		PayoutLimit:      queryInt(q.Get("payoutLimit")),
		LedgerLimit:      queryInt(q.Get("ledgerLimit")),
		SampleLimit:      queryInt(q.Get("sampleLimit")),
	}

	report, err := h.svc.Run(r.Context(), params)
	if err != nil {
		log.Error().Err(err).Msg("finance audit failed")
		response.InternalError(w)
		return
	}

	if h.archiver != nil && q.Get("archive") == "true" {
		key, err := h.archiver.Archive(r.Context(), report)
		if err != nil {
			report.Warnings = append(report.Warnings, "archive failed: "+err.Error())
		} else if key != "" {
			report.Warnings = append(report.Warnings, "archived to "+key)
		}
	}

	response.OK(w, report)
}

func queryInt(raw string) int {
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
