package hptp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ExchangeRequest is the wire format of an HPTP measurement request. The
// timing HTTP service exposes the matching endpoint, so any chronocert node
// can act as a peer for any other.
type ExchangeRequest struct {
	T1 int64 `json:"t1"`
}

// ExchangeResponse carries the remote receive (t2) and send (t3) timestamps
// plus the peer's advertised stratum.
type ExchangeResponse struct {
	T1      int64 `json:"t1"`
	T2      int64 `json:"t2"`
	T3      int64 `json:"t3"`
	Stratum int   `json:"stratum"`
}

// Measurer performs one four-timestamp exchange against a peer address.
// Implementations must honor context cancellation so a dead peer cannot
// stall a sync cycle.
type Measurer interface {
	Measure(ctx context.Context, addr string) (Measurement, error)
}

// HTTPMeasurer measures peers over the timing service's own HTTP exchange
// endpoint.
type HTTPMeasurer struct {
	client *http.Client
	// nowNs supplies local timestamps (t1, t4) in nanoseconds.
	nowNs func() int64
}

// defaultExchangeTimeout bounds a single exchange when the caller context
// has no deadline of its own.
const defaultExchangeTimeout = 2 * time.Second

// NewHTTPMeasurer builds a measurer using the given local clock reading.
func NewHTTPMeasurer(nowNs func() int64) *HTTPMeasurer {
	return &HTTPMeasurer{
		client: &http.Client{Timeout: defaultExchangeTimeout},
		nowNs:  nowNs,
	}
}

// Measure runs the exchange: local send t1, remote receive t2, remote send
// t3, local receive t4.
func (m *HTTPMeasurer) Measure(ctx context.Context, addr string) (Measurement, error) {
	t1 := m.nowNs()

	body, err := json.Marshal(ExchangeRequest{T1: t1})
	if err != nil {
		return Measurement{}, fmt.Errorf("marshal exchange request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr+"/api/timing/v1/hptp", bytes.NewReader(body))
	if err != nil {
		return Measurement{}, fmt.Errorf("build exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return Measurement{}, fmt.Errorf("exchange with %s: %w", addr, err)
	}
	defer resp.Body.Close()

	t4 := m.nowNs()

	if resp.StatusCode != http.StatusOK {
		return Measurement{}, fmt.Errorf("exchange with %s: status %d", addr, resp.StatusCode)
	}

	var ex ExchangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&ex); err != nil {
		return Measurement{}, fmt.Errorf("decode exchange response: %w", err)
	}
	if ex.T1 != t1 {
		return Measurement{}, fmt.Errorf("exchange with %s: t1 echo mismatch", addr)
	}

	offset, rtt := offsetFromExchange(t1, ex.T2, ex.T3, t4)
	stratum := ex.Stratum
	if stratum < 1 || stratum > maxStratum {
		stratum = maxStratum
	}
	return Measurement{OffsetNs: offset, RoundTripNs: rtt, Stratum: stratum}, nil
}

// AnswerExchange builds the server side of a measurement: it echoes t1 and
// stamps receive/send times from the local clock. Receive and send are taken
// as two distinct readings so processing time is visible to the caller.
func AnswerExchange(req ExchangeRequest, nowNs func() int64, stratum int) ExchangeResponse {
	t2 := nowNs()
	t3 := nowNs()
	return ExchangeResponse{T1: req.T1, T2: t2, T3: t3, Stratum: stratum}
}

var _ Measurer = (*HTTPMeasurer)(nil)
