package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/speechgate/asr-gateway/internal/backend"
)

// Prediction is one entry of the unary gRPC response envelope.
type Prediction struct {
	Results      []backend.Segment `json:"results"`
	ModelVersion string            `json:"model_version"`
}

// UnaryResponse is the envelope for gRPC-transport unary responses:
// {"predictions": [{"results": […], "model_version": "…"}]}
type UnaryResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// NewUnaryResponse wraps a materialized transcription result into the wire
// envelope.
func NewUnaryResponse(result *backend.Result) UnaryResponse {
	return UnaryResponse{
		Predictions: []Prediction{
			{
				Results:      result.Segments,
				ModelVersion: result.ModelVersion,
			},
		},
	}
}

// ErrorResponse is the envelope for all user-visible failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StreamPrediction is the inner object of every streaming frame. Results is
// a string for plain/confidence modes and a list of timed alternatives for
// timed finals.
type StreamPrediction struct {
	Results    interface{} `json:"results"`
	Time       *float64    `json:"time,omitempty"`
	Confidence *float32    `json:"confidence,omitempty"`
	Stability  *float32    `json:"stability,omitempty"`
}

// StreamEnvelope is the outbound frame shape for streaming sessions:
// {"predictions": {…}}
type StreamEnvelope struct {
	Predictions StreamPrediction `json:"predictions"`
}

// TimedAlternative pairs an alternative's text with the elapsed processing
// time observed for the frame that produced it.
type TimedAlternative struct {
	Transcript string  `json:"transcript"`
	Time       float64 `json:"time"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeRawJSON(w http.ResponseWriter, status int, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
