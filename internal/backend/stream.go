package backend

import (
	"context"
	"fmt"
	"io"
	"sync"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
)

// streamSegmentBuffer bounds how many segments can pile up between frames.
const streamSegmentBuffer = 64

// Stream is one streaming recognition session over the shared gRPC
// connection. It is owned by a single connection handler; a dedicated
// receive goroutine drains the engine's responses into a buffered channel so
// Feed can hand back whatever has been produced so far without blocking.
type Stream struct {
	stream   speechpb.Speech_StreamingRecognizeClient
	cancel   context.CancelFunc
	segments chan Segment
	logger   zerolog.Logger

	mu      sync.Mutex
	recvErr error
	closed  bool
}

// OpenStream starts a streaming recognition session. The streaming config is
// sent before any audio; interim results are always requested since the
// session handler decides what to surface per its verbosity mode.
func (c *Clients) OpenStream(ctx context.Context, language string) (ChunkStream, error) {
	client, err := c.grpcClient(ctx)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)

	grpcStream, err := client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open recognition stream: %w", err)
	}

	configReq := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:            int32(16000),
					LanguageCode:               language,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: true,
			},
		},
	}
	if err := grpcStream.Send(configReq); err != nil {
		cancel()
		return nil, fmt.Errorf("send streaming config: %w", err)
	}

	s := &Stream{
		stream:   grpcStream,
		cancel:   cancel,
		segments: make(chan Segment, streamSegmentBuffer),
		logger:   c.logger.With().Str("component", "stream").Logger(),
	}

	go s.recvLoop()

	return s, nil
}

// recvLoop drains engine responses into the segment channel. It runs until
// the stream ends; the channel is closed so Feed can tell the stream is done.
func (s *Stream) recvLoop() {
	defer close(s.segments)

	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if err != io.EOF {
				s.setRecvErr(err)
			}
			return
		}

		for _, r := range resp.GetResults() {
			seg := mapStreamingResult(r)
			select {
			case s.segments <- seg:
			default:
				// The handler has fallen behind; dropping is preferable to
				// stalling the engine's response stream.
				s.logger.Warn().Msg("Segment buffer full, dropping segment")
			}
		}
	}
}

func (s *Stream) setRecvErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recvErr == nil {
		s.recvErr = err
	}
}

func (s *Stream) pendingErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recvErr
}

// Feed sends one audio chunk and returns the segments produced so far.
// Segments are returned in the order the engine produced them; segments
// recognized after this call surface on the next Feed.
func (s *Stream) Feed(chunk []byte) ([]Segment, error) {
	if err := s.pendingErr(); err != nil {
		return nil, fmt.Errorf("recognition stream failed: %w", err)
	}

	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: chunk,
		},
	}
	if err := s.stream.Send(req); err != nil {
		return nil, fmt.Errorf("send audio chunk: %w", err)
	}

	var out []Segment
	for {
		select {
		case seg, ok := <-s.segments:
			if !ok {
				// Stream ended; report the receive error if one is pending
				if err := s.pendingErr(); err != nil {
					return out, fmt.Errorf("recognition stream failed: %w", err)
				}
				return out, nil
			}
			out = append(out, seg)
		default:
			return out, nil
		}
	}
}

// Close half-closes the send side and tears the stream down.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.stream.CloseSend()
	s.cancel()
	return err
}
