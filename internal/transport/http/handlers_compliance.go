package httptransport

import (
	"net/http"

	"chronocert/internal/transport/http/shared"
	"chronocert/pkg/domain"
	dErrors "chronocert/pkg/domain-errors"
)

func (h *Handler) handleFINRA613Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.deps.Certifier.FINRA613Status(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"compliance": status,
	})
}

func (h *Handler) handleFINRA613Report(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"report":  h.deps.Verifier.VerifyFINRA613Compliance(),
	})
}

func (h *Handler) handleMiFIDIIReport(w http.ResponseWriter, r *http.Request) {
	venue, err := domain.ParseVenueClass(r.URL.Query().Get("venueClass"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid venue class"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"report":  h.deps.Verifier.VerifyMiFIDIICompliance(venue),
	})
}
