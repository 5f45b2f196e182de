package gateway

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/speechgate/asr-gateway/internal/backend"
	"github.com/speechgate/asr-gateway/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The gateway sits behind the serving platform's front door;
		// origin filtering happens there.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// VerbosityMode controls how much detail streaming responses carry.
type VerbosityMode string

const (
	VerbosityPlain      VerbosityMode = "plain"
	VerbosityTimed      VerbosityMode = "timed"
	VerbosityConfidence VerbosityMode = "confidence"
)

// ParseVerbosity maps the caller's verbosity parameter onto a mode;
// empty input means plain.
func ParseVerbosity(s string) (VerbosityMode, error) {
	switch VerbosityMode(s) {
	case "", VerbosityPlain:
		return VerbosityPlain, nil
	case VerbosityTimed:
		return VerbosityTimed, nil
	case VerbosityConfidence:
		return VerbosityConfidence, nil
	default:
		return "", fmt.Errorf("unknown verbosity mode %q", s)
	}
}

// streamSession holds the state of one bidirectional streaming connection.
// It is owned exclusively by the connection's handler goroutine; the partial
// buffer and stream handle need no locking. The write mutex only exists for
// the keepalive pinger.
type streamSession struct {
	conn    *websocket.Conn
	backend backend.Transcriber
	stream  backend.ChunkStream

	language string
	mode     VerbosityMode
	partial  strings.Builder

	logger  zerolog.Logger
	metrics *observability.StreamMetrics

	writeMu sync.Mutex
	done    chan struct{}
}

// BidirectionalStream upgrades the connection and runs the streaming session
// until disconnect.
func (h *Handler) BidirectionalStream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, err := ParseVerbosity(r.URL.Query().Get("verbosity"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		language := queryLanguage(r, h.cfg.DefaultLanguage)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger := observability.GetLogger()
			logger.Warn().Err(err).Msg("WebSocket upgrade failed")
			return
		}

		sessionID := observability.NewCorrelationID()
		logger := observability.WithCorrelationID(sessionID).With().
			Str("session_id", sessionID).
			Str("language", language).
			Str("verbosity", string(mode)).
			Logger()

		session := &streamSession{
			conn:     conn,
			backend:  h.backend,
			language: language,
			mode:     mode,
			logger:   logger,
			metrics:  observability.NewStreamMetrics(),
			done:     make(chan struct{}),
		}

		logger.Info().Msg("Streaming session opened")
		session.run(r)
	}
}

// run is the session's single read-process-write loop. Output frames are
// emitted in the order their input frames were processed; nothing else
// writes transcript frames, so ordering holds by construction.
func (s *streamSession) run(r *http.Request) {
	defer s.close()

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go s.keepalive()

	for {
		msgType, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		if msgType != websocket.BinaryMessage && msgType != websocket.TextMessage {
			continue
		}

		s.processFrame(r, frame)
	}
}

// processFrame feeds one inbound frame to the streaming recognizer and emits
// the resulting segments. A failing chunk is logged and skipped; the session
// stays open and the backend stream is re-established on the next frame.
func (s *streamSession) processFrame(r *http.Request, frame []byte) {
	start := time.Now()
	observability.RecordAudioBytes("in", int64(len(frame)))

	if s.stream == nil {
		stream, err := s.backend.OpenStream(r.Context(), s.language)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to open recognition stream, skipping chunk")
			observability.RecordError("stream_open_error", "backend")
			return
		}
		s.stream = stream
	}

	segments, err := s.stream.Feed(frame)
	if err != nil {
		s.logger.Error().Err(err).Msg("Chunk transcription failed, skipping chunk")
		observability.RecordError("chunk_error", "backend")
		_ = s.stream.Close()
		s.stream = nil
		return
	}

	elapsed := time.Since(start).Seconds()
	for _, seg := range segments {
		s.emit(seg, elapsed)
	}
}

// emit renders one segment according to the session's verbosity mode.
func (s *streamSession) emit(seg backend.Segment, elapsed float64) {
	if seg.IsFinal {
		s.partial.Reset()
		s.send(s.finalPrediction(seg, elapsed))
		return
	}

	// Partial segments accumulate into the running partial buffer and are
	// flushed whenever there is something to show.
	if text := seg.BestTranscript(); text != "" {
		s.partial.Reset()
		s.partial.WriteString(text)
	}
	if s.partial.Len() == 0 {
		return
	}
	s.send(s.partialPrediction(seg, elapsed))
}

func (s *streamSession) finalPrediction(seg backend.Segment, elapsed float64) StreamPrediction {
	switch s.mode {
	case VerbosityTimed:
		alts := make([]TimedAlternative, 0, len(seg.Alternatives))
		for _, alt := range seg.Alternatives {
			alts = append(alts, TimedAlternative{Transcript: alt.Transcript, Time: elapsed})
		}
		return StreamPrediction{Results: alts}

	case VerbosityConfidence:
		pred := StreamPrediction{Results: seg.BestTranscript()}
		if len(seg.Alternatives) > 0 {
			conf := seg.Alternatives[0].Confidence
			pred.Confidence = &conf
		}
		return pred

	default:
		return StreamPrediction{Results: seg.BestTranscript()}
	}
}

func (s *streamSession) partialPrediction(seg backend.Segment, elapsed float64) StreamPrediction {
	pred := StreamPrediction{Results: s.partial.String()}

	switch s.mode {
	case VerbosityTimed:
		pred.Time = &elapsed
	case VerbosityConfidence:
		stability := seg.Stability
		pred.Stability = &stability
	}
	return pred
}

func (s *streamSession) send(pred StreamPrediction) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteJSON(StreamEnvelope{Predictions: pred}); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write transcript frame")
		observability.RecordError("ws_write_error", "gateway")
	}
}

// keepalive pings the peer so half-open connections are detected.
func (s *streamSession) keepalive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *streamSession) close() {
	close(s.done)
	if s.stream != nil {
		_ = s.stream.Close()
		s.stream = nil
	}
	_ = s.conn.Close()
	s.metrics.RecordEnd()
	s.logger.Info().Msg("Streaming session closed")
}
