package gateway

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"wayfare/internal/config"

	"github.com/rs/zerolog"
)

// ErrDeclined is the simulated gateway's rejection of a charge.
var ErrDeclined = errors.New("payment declined by gateway")

// Simulator stands in for an external payment provider: it sleeps a bounded
// random latency and declines a configurable fraction of charges. Timing is
// intentionally non-deterministic; tests should only rely on "eventually
// resolves within the context deadline".
type Simulator struct {
	latencyMin  time.Duration
	latencyMax  time.Duration
	declineRate float64
	log         zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulator(cfg config.GatewayConfig, logger *zerolog.Logger) *Simulator {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "gateway").Logger()
	}
	return &Simulator{
		latencyMin:  time.Duration(cfg.LatencyMinMs) * time.Millisecond,
		latencyMax:  time.Duration(cfg.LatencyMaxMs) * time.Millisecond,
		declineRate: cfg.DeclineRate,
		log:         log,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Charge blocks for the simulated latency, honoring ctx cancellation, then
// either succeeds or returns ErrDeclined.
func (s *Simulator) Charge(ctx context.Context, paymentID string, amount int64) error {
	delay := s.latencyMin
	if s.latencyMax > s.latencyMin {
		s.mu.Lock()
		delay += time.Duration(s.rng.Int63n(int64(s.latencyMax - s.latencyMin)))
		s.mu.Unlock()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	s.mu.Lock()
	declined := s.rng.Float64() < s.declineRate
	s.mu.Unlock()

	if declined {
		s.log.Info().Str("payment_id", paymentID).Int64("amount", amount).Msg("charge declined")
		return ErrDeclined
	}

	s.log.Debug().Str("payment_id", paymentID).Int64("amount", amount).Dur("latency", delay).Msg("charge captured")
	return nil
}

// Static is a deterministic gateway for tests and local runs: it always
// answers with the configured error after an optional fixed delay.
type Static struct {
	Err   error
	Delay time.Duration
}

func (s Static) Charge(ctx context.Context, paymentID string, amount int64) error {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return s.Err
}
