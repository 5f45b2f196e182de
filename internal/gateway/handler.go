package gateway

import (
	"net/http"

	"github.com/speechgate/asr-gateway/internal/backend"
	"github.com/speechgate/asr-gateway/internal/config"
	"github.com/speechgate/asr-gateway/internal/observability"
)

// Handler serves the unary and streaming transcription surface. It holds the
// shared backend clients; all per-request and per-session state lives in the
// request scope.
type Handler struct {
	cfg     *config.Config
	backend backend.Transcriber
}

// NewHandler creates the gateway's HTTP surface around the shared backend
// client manager.
func NewHandler(cfg *config.Config, b backend.Transcriber) *Handler {
	return &Handler{cfg: cfg, backend: b}
}

// Register wires the gateway's routes onto a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ping", observability.PingHandler())
	mux.HandleFunc("/invocations", h.Invocations(backend.TransportAuto))
	mux.HandleFunc("/invocations/http", h.Invocations(backend.TransportHTTP))
	mux.HandleFunc("/invocations/grpc", h.Invocations(backend.TransportGRPC))
	mux.HandleFunc("/invocations-bidirectional-stream", h.BidirectionalStream())
}

// Invocations handles a unary transcription request. A non-auto forced
// transport (the /invocations/http and /invocations/grpc paths) replaces the
// caller's transport field before routing; the custom-attributes header
// still takes precedence, matching the routing order of the fronting
// serving contract.
func (h *Handler) Invocations(forced backend.Transport) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "only POST is supported")
			return
		}

		correlationID := observability.NewCorrelationID()
		w.Header().Set("X-Request-Id", correlationID)
		logger := observability.WithCorrelationID(correlationID)

		req, err := ParseRequest(r, h.cfg.DefaultLanguage)
		if err != nil {
			logger.Warn().Err(err).Msg("Rejected malformed request")
			observability.RecordError("bad_request", "gateway")
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if forced != backend.TransportAuto {
			req.Transport = forced
		}

		transport := SelectTransport(r.Header.Get(CustomAttributesHeader), req.Transport, len(req.Audio))

		logger = logger.With().
			Str("transport", string(transport)).
			Str("language", req.Language).
			Int("audio_bytes", len(req.Audio)).
			Logger()
		logger.Info().Msg("Transcription request accepted")

		observability.RecordAudioBytes("in", int64(len(req.Audio)))
		metrics := observability.NewRequestMetrics(string(transport))

		switch transport {
		case backend.TransportHTTP:
			status, payload, err := h.backend.TranscribeHTTP(r.Context(), req.Audio, req.Language)
			if err != nil {
				logger.Error().Err(err).Msg("Backend HTTP call failed")
				metrics.RecordEnd(false)
				observability.RecordError("backend_http_error", "backend")
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			metrics.RecordEnd(status < 400)
			writeRawJSON(w, status, payload)

		case backend.TransportGRPC:
			result, err := h.backend.TranscribeGRPC(r.Context(), req)
			if err != nil {
				logger.Error().Err(err).Msg("Backend gRPC call failed")
				metrics.RecordEnd(false)
				observability.RecordError("backend_grpc_error", "backend")
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			metrics.RecordEnd(true)
			writeJSON(w, http.StatusOK, NewUnaryResponse(result))
		}
	}
}
