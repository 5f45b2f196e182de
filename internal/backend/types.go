package backend

import (
	"context"
	"encoding/json"
	"fmt"
)

// Transport identifies the wire protocol used to reach the backend engine.
type Transport string

const (
	TransportAuto Transport = "auto"
	TransportHTTP Transport = "http"
	TransportGRPC Transport = "grpc"
)

// ParseTransport maps a caller-supplied transport string onto a Transport.
// Empty input means auto; anything unrecognized is rejected.
func ParseTransport(s string) (Transport, error) {
	switch Transport(s) {
	case "", TransportAuto:
		return TransportAuto, nil
	case TransportHTTP:
		return TransportHTTP, nil
	case TransportGRPC:
		return TransportGRPC, nil
	default:
		return "", fmt.Errorf("unknown transport %q", s)
	}
}

// DefaultMaxSpeakers bounds diarization when the caller doesn't say otherwise.
const DefaultMaxSpeakers = 10

// TranscriptionRequest is the normalized form of an inbound request,
// whatever encoding it arrived in.
type TranscriptionRequest struct {
	Audio             []byte
	Language          string
	Transport         Transport
	EnableDiarization bool
	MaxSpeakers       int
}

// Validate enforces the request invariants: audio and language are never empty.
func (r *TranscriptionRequest) Validate() error {
	if len(r.Audio) == 0 {
		return fmt.Errorf("no audio content in request")
	}
	if r.Language == "" {
		return fmt.Errorf("language code must not be empty")
	}
	return nil
}

// Word carries per-word timing and, when diarization was requested,
// the speaker attribution. Times are in seconds.
type Word struct {
	Word       string  `json:"word"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	SpeakerTag int32   `json:"speaker_tag,omitempty"`
}

// Alternative is one candidate transcript, ordered by confidence in a Segment.
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float32 `json:"confidence"`
	Words      []Word  `json:"words,omitempty"`
}

// Segment is one recognition result. Streaming calls produce a mix of
// partial and final segments; unary calls produce only final ones.
type Segment struct {
	Alternatives []Alternative `json:"alternatives"`
	IsFinal      bool          `json:"is_final"`
	ChannelTag   int32         `json:"channel_tag"`
	Stability    float32       `json:"stability,omitempty"`
}

// BestTranscript returns the highest-confidence alternative's text,
// or empty when the segment carries no alternatives.
func (s Segment) BestTranscript() string {
	if len(s.Alternatives) == 0 {
		return ""
	}
	return s.Alternatives[0].Transcript
}

// Result is a fully materialized transcription, as returned by unary calls.
type Result struct {
	Segments     []Segment
	ModelVersion string
}

// Transcriber is the capability surface the gateway consumes. Implemented
// by Clients; handler tests substitute fakes.
type Transcriber interface {
	// TranscribeHTTP posts the audio to the engine's HTTP endpoint and
	// returns the engine's status code and best-effort-parsed JSON payload.
	TranscribeHTTP(ctx context.Context, audio []byte, language string) (int, json.RawMessage, error)

	// TranscribeGRPC performs one offline recognition over gRPC.
	TranscribeGRPC(ctx context.Context, req *TranscriptionRequest) (*Result, error)

	// OpenStream starts a streaming recognition session for one connection.
	OpenStream(ctx context.Context, language string) (ChunkStream, error)
}

// ChunkStream feeds audio chunks to a streaming recognizer, one frame at a
// time, and surfaces the segments produced so far.
type ChunkStream interface {
	Feed(chunk []byte) ([]Segment, error)
	Close() error
}
