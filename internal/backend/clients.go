package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/speechgate/asr-gateway/internal/config"
	"github.com/speechgate/asr-gateway/internal/observability"
	"github.com/speechgate/asr-gateway/internal/resilience"
)

// Clients owns one lazily-constructed client per backend transport. A single
// Clients value is shared by every connection; construction of each client is
// synchronized so concurrent first use cannot race, and succeeds at most once.
type Clients struct {
	cfg    *config.Config
	logger zerolog.Logger

	httpOnce   sync.Once
	httpClient *http.Client

	// The gRPC connection doubles as the streaming client: establishing it is
	// the expensive part, so it is reused across sessions while every session
	// still drives its own send/receive stream.
	grpcMu   sync.Mutex
	grpcConn *grpc.ClientConn
	speech   speechpb.SpeechClient

	breaker *resilience.CircuitBreaker
}

// NewClients creates the shared client manager. No connections are made yet;
// each transport connects on first use.
func NewClients(cfg *config.Config, logger zerolog.Logger) *Clients {
	return &Clients{
		cfg:    cfg,
		logger: logger,
		breaker: resilience.NewCircuitBreaker(
			"backend-grpc",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
	}
}

// HTTPClient returns the pooled HTTP client for the backend's REST surface.
// Construction cannot fail.
func (c *Clients) HTTPClient() *http.Client {
	c.httpOnce.Do(func() {
		c.httpClient = &http.Client{
			Timeout: time.Duration(c.cfg.BackendTimeoutSeconds) * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		}
	})
	return c.httpClient
}

// grpcClient returns the shared recognition client, dialing the backend on
// first use. Unlike the HTTP leg this can fail; a failed attempt is not
// cached, so the readiness probe can retry construction.
func (c *Clients) grpcClient(ctx context.Context) (speechpb.SpeechClient, error) {
	c.grpcMu.Lock()
	defer c.grpcMu.Unlock()

	if c.speech != nil {
		return c.speech, nil
	}

	addr := c.cfg.BackendGRPCAddr()

	dialCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.BackendTimeoutSeconds)*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to dial backend at %s: %w", addr, err)
	}

	c.grpcConn = conn
	c.speech = speechpb.NewSpeechClient(conn)
	c.logger.Info().Str("address", addr).Msg("Connected to backend gRPC")
	return c.speech, nil
}

// EnsureGRPC attempts construction of the gRPC client. Used by the readiness
// probe: success means the backend's gRPC leg is reachable.
func (c *Clients) EnsureGRPC(ctx context.Context) error {
	_, err := c.grpcClient(ctx)
	return err
}

// TranscribeHTTP posts the audio as multipart form data (fields "file" and
// "language") to the backend's transcription endpoint. The backend's status
// code is passed through; a body that is not valid JSON is wrapped as
// {"raw": …} rather than rejected.
func (c *Clients) TranscribeHTTP(ctx context.Context, audio []byte, language string) (int, json.RawMessage, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", "audio.wav")
	if err != nil {
		return 0, nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return 0, nil, fmt.Errorf("build multipart body: %w", err)
	}
	if err := w.WriteField("language", language); err != nil {
		return 0, nil, fmt.Errorf("build multipart body: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, nil, fmt.Errorf("build multipart body: %w", err)
	}

	url := c.cfg.BackendHTTPURL() + "/transcribe"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return 0, nil, fmt.Errorf("build backend request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTPClient().Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("backend HTTP call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read backend response: %w", err)
	}

	if json.Valid(body) {
		return resp.StatusCode, json.RawMessage(body), nil
	}

	wrapped, err := json.Marshal(map[string]string{"raw": string(body)})
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("wrap backend response: %w", err)
	}
	return resp.StatusCode, wrapped, nil
}

// TranscribeGRPC performs a single offline-recognize call and maps the
// engine's native result into the normalized Result.
func (c *Clients) TranscribeGRPC(ctx context.Context, req *TranscriptionRequest) (*Result, error) {
	client, err := c.grpcClient(ctx)
	if err != nil {
		return nil, err
	}

	recognizeReq := &speechpb.RecognizeRequest{
		Config: buildRecognitionConfig(req),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: req.Audio},
		},
	}

	var resp *speechpb.RecognizeResponse
	err = c.breaker.Call(func() error {
		var callErr error
		resp, callErr = client.Recognize(ctx, recognizeReq)
		return callErr
	})

	observability.UpdateCircuitBreakerState(c.breaker.Name(), int(c.breaker.GetState()))
	if err != nil {
		observability.IncrementCircuitBreakerFailures(c.breaker.Name())
		return nil, fmt.Errorf("backend recognize failed: %w", err)
	}

	return mapRecognizeResponse(resp, req.EnableDiarization, c.cfg.ModelVersion), nil
}

// Close tears down the shared gRPC connection.
func (c *Clients) Close() error {
	c.grpcMu.Lock()
	defer c.grpcMu.Unlock()

	if c.grpcConn != nil {
		err := c.grpcConn.Close()
		c.grpcConn = nil
		c.speech = nil
		return err
	}
	return nil
}
