// Package readiness gates serving on the backend engine coming up. The
// engine's HTTP surface tends to bind before its gRPC surface, so the probe
// polls them as two sequential legs with different stakes: an engine without
// HTTP can still serve gRPC traffic, but without gRPC the gateway is useless.
package readiness

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/speechgate/asr-gateway/internal/resilience"
)

// Prober polls the backend engine until both surfaces answer, or gives up.
type Prober struct {
	// HTTPCheck and GRPCCheck return nil once the respective surface answers.
	HTTPCheck func(ctx context.Context) error
	GRPCCheck func(ctx context.Context) error

	Interval        time.Duration
	HTTPMaxAttempts int
	GRPCMaxAttempts int

	// Sleep is overridable for tests; nil uses time.Sleep.
	Sleep func(time.Duration)

	Logger zerolog.Logger
}

// Wait blocks until the engine is ready. HTTP-leg exhaustion is logged and
// tolerated; gRPC-leg exhaustion is returned as an error, and the caller is
// expected to treat it as fatal.
func (p *Prober) Wait(ctx context.Context) error {
	p.Logger.Info().
		Int("max_attempts", p.HTTPMaxAttempts).
		Dur("interval", p.Interval).
		Msg("Waiting for engine HTTP surface")

	if err := p.poll(ctx, p.HTTPCheck, p.HTTPMaxAttempts); err != nil {
		p.Logger.Warn().Err(err).Msg("Engine HTTP surface never answered, continuing on gRPC only")
	} else {
		p.Logger.Info().Msg("Engine HTTP surface is up")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	p.Logger.Info().
		Int("max_attempts", p.GRPCMaxAttempts).
		Dur("interval", p.Interval).
		Msg("Waiting for engine gRPC surface")

	if err := p.poll(ctx, p.GRPCCheck, p.GRPCMaxAttempts); err != nil {
		return fmt.Errorf("engine gRPC surface never became ready: %w", err)
	}

	p.Logger.Info().Msg("Engine gRPC surface is up, gateway is ready")
	return nil
}

func (p *Prober) poll(ctx context.Context, check func(ctx context.Context) error, maxAttempts int) error {
	cfg := &resilience.RetryConfig{
		MaxAttempts:       maxAttempts,
		InitialBackoff:    p.Interval,
		MaxBackoff:        p.Interval,
		BackoffMultiplier: 1.0,
		Sleep:             p.Sleep,
	}
	return resilience.Retry(ctx, func() error { return check(ctx) }, cfg, nil)
}

// HTTPHealthCheck builds a probe leg that GETs the engine's health endpoint
// and accepts any 2xx answer.
func HTTPHealthCheck(client *http.Client, url string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
		}
		return nil
	}
}
