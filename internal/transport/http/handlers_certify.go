package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"chronocert/internal/certify"
	"chronocert/internal/transport/http/shared"
	"chronocert/pkg/domain"
	dErrors "chronocert/pkg/domain-errors"
)

type certifyRequest struct {
	OperationID string `json:"operationId"`
	Timestamp   string `json:"timestamp"`
	VenueClass  string `json:"venueClass"`
	DataHash    string `json:"dataHash"`
}

func (h *Handler) handleCertify(w http.ResponseWriter, r *http.Request) {
	var req certifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	ts, err := time.Parse(time.RFC3339Nano, req.Timestamp)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "timestamp must be RFC 3339"))
		return
	}
	venue, err := domain.ParseVenueClass(req.VenueClass)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid venue class"))
		return
	}

	var operationID domain.OperationID
	if req.OperationID != "" {
		operationID, err = domain.ParseOperationID(req.OperationID)
		if err != nil {
			shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid operation id"))
			return
		}
	}

	cert, err := h.deps.Certifier.Certify(r.Context(), certify.CertifyRequest{
		Timestamp:   ts,
		OperationID: operationID,
		VenueClass:  venue,
		DataHash:    req.DataHash,
	})
	if err != nil {
		var verr *certify.VerificationFailedError
		if errors.As(err, &verr) {
			shared.WriteJSON(w, http.StatusBadRequest, map[string]any{
				"success":      false,
				"error":        "timestamp failed verification",
				"code":         string(dErrors.CodeVerificationFailed),
				"reasons":      verr.Reasons,
				"verification": verr.Result,
			})
			return
		}
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"success":     true,
		"certificate": cert,
	})
}

func (h *Handler) handleGetCertificate(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid certificate id"))
		return
	}
	cert, err := h.deps.Certifier.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"certificate": cert,
	})
}

type verifyRequest struct {
	CertificateID string `json:"certificateId"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	id, err := domain.ParseCertificateID(req.CertificateID)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid certificate id"))
		return
	}
	outcome, err := h.deps.Certifier.Verify(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"verification": outcome,
	})
}

func (h *Handler) handleRevokeCertificate(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid certificate id"))
		return
	}
	cert, err := h.deps.Certifier.Revoke(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"certificate": cert,
	})
}

func (h *Handler) handleListCertificates(w http.ResponseWriter, r *http.Request) {
	operationID, err := domain.ParseOperationID(r.URL.Query().Get("operationId"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid operation id"))
		return
	}
	certs, err := h.deps.Certifier.ListByOperation(r.Context(), operationID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if certs == nil {
		certs = []certify.Certificate{}
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"certificates": certs,
	})
}
