package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfare/internal/config"
)

func TestSimulatorAlwaysDeclinesAtFullRate(t *testing.T) {
	sim := NewSimulator(config.GatewayConfig{
		LatencyMinMs: 1,
		LatencyMaxMs: 2,
		DeclineRate:  1,
	}, nil)

	for i := 0; i < 5; i++ {
		err := sim.Charge(context.Background(), "TXN-0001", 89900)
		assert.ErrorIs(t, err, ErrDeclined)
	}
}

func TestSimulatorNeverDeclinesAtZeroRate(t *testing.T) {
	sim := NewSimulator(config.GatewayConfig{
		LatencyMinMs: 1,
		LatencyMaxMs: 2,
		DeclineRate:  0,
	}, nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, sim.Charge(context.Background(), "TXN-0001", 89900))
	}
}

func TestSimulatorHonorsContextCancellation(t *testing.T) {
	sim := NewSimulator(config.GatewayConfig{
		LatencyMinMs: 5000,
		LatencyMaxMs: 6000,
		DeclineRate:  0,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := sim.Charge(ctx, "TXN-0001", 89900)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second, "charge must abandon the sleep on cancellation")
}

func TestStaticGateway(t *testing.T) {
	require.NoError(t, Static{}.Charge(context.Background(), "TXN-0001", 100))
	assert.ErrorIs(t, Static{Err: ErrDeclined}.Charge(context.Background(), "TXN-0001", 100), ErrDeclined)
}

func TestStaticGatewayDelayRespectsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := Static{Delay: time.Second}.Charge(ctx, "TXN-0001", 100)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
