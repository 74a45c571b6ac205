package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"chronocert/internal/clock"
	"chronocert/internal/hptp"
	"chronocert/internal/transport/http/shared"
	"chronocert/internal/verify"
	dErrors "chronocert/pkg/domain-errors"
)

const maxBatchCount = 1000

type componentsPayload struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int64 `json:"nanoseconds"`
}

type timestampPayload struct {
	ISO          string            `json:"iso"`
	Femtoseconds string            `json:"femtoseconds"`
	Components   componentsPayload `json:"components"`
	Source       string            `json:"source"`
	Precision    string            `json:"precision"`
	Synchronized bool              `json:"synchronized"`
}

func toTimestampPayload(ts clock.Timestamp) timestampPayload {
	seconds, nanos := ts.Components()
	return timestampPayload{
		ISO:          ts.ISO(),
		Femtoseconds: ts.Femtoseconds(),
		Components:   componentsPayload{Seconds: seconds, Nanoseconds: nanos},
		Source:       string(ts.Source),
		Precision:    string(ts.Precision),
		Synchronized: ts.Synchronized,
	}
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"timestamp":  toTimestampPayload(h.deps.Client.Now()),
		"syncStatus": h.deps.Client.Status(),
	})
}

func (h *Handler) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  h.deps.Client.Status(),
	})
}

func (h *Handler) handlePeers(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"peers":   h.deps.Client.Peers(),
	})
}

type batchRequest struct {
	Count int `json:"count"`
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if req.Count < 1 || req.Count > maxBatchCount {
		shared.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "count must be between 1 and %d", maxBatchCount))
		return
	}

	timestamps := make([]timestampPayload, req.Count)
	for i := range timestamps {
		timestamps[i] = toTimestampPayload(h.deps.Client.Now())
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"count":      req.Count,
		"timestamps": timestamps,
	})
}

func (h *Handler) handleTimingMetrics(w http.ResponseWriter, r *http.Request) {
	status := h.deps.Client.Status()
	ts := h.deps.Driver.Timestamp()
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"synchronized": status.Synchronized,
		"stratum":      status.Stratum,
		"offsetNs":     status.OffsetNs,
		"jitterNs":     status.JitterNs,
		"driftPPB":     status.DriftPPB,
		"peerCount":    status.PeerCount,
		"clockSource":  string(ts.Source),
		"precision":    string(ts.Precision),
		"ptp1588Level": verify.PTP1588Level(status.OffsetNs),
	})
}

type calibrationPayload struct {
	Source           string `json:"source"`
	OffsetNs         int64  `json:"offsetNs"`
	LastAdjustmentNs int64  `json:"lastAdjustmentNs"`
	LastCalibration  string `json:"lastCalibration"`
	Calibrations     uint64 `json:"calibrations"`
}

type capabilitiesPayload struct {
	Source       string `json:"source"`
	ResolutionNs int64  `json:"resolutionNs"`
	AccuracyPPB  int64  `json:"accuracyPPB"`
	Precision    string `json:"precision"`
}

func (h *Handler) handleCalibration(w http.ResponseWriter, r *http.Request) {
	calib := h.deps.Driver.CalibrationStatus()
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"calibration": calibrationPayload{
			Source:           string(calib.Source),
			OffsetNs:         calib.OffsetNs,
			LastAdjustmentNs: calib.LastAdjustmentNs,
			LastCalibration:  calib.LastCalibration.UTC().Format(time.RFC3339Nano),
			Calibrations:     calib.Calibrations,
		},
		"capabilities": capabilitiesPayload{
			Source:       string(calib.Capabilities.Source),
			ResolutionNs: calib.Capabilities.ResolutionNs,
			AccuracyPPB:  calib.Capabilities.AccuracyPPB,
			Precision:    string(calib.Capabilities.Precision),
		},
	})
}

// handleExchange answers one four-timestamp exchange for remote peers.
func (h *Handler) handleExchange(w http.ResponseWriter, r *http.Request) {
	var req hptp.ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if req.T1 == 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "t1 is required"))
		return
	}
	resp := hptp.AnswerExchange(req, h.deps.Client.RawNowNs, h.deps.Client.Stratum())
	shared.WriteJSON(w, http.StatusOK, resp)
}
