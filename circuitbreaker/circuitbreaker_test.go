package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCircuitBreaker(t *testing.T) {
	newCB := func(t *testing.T) *CircuitBreaker {
		return New("test", Config{
			FailureThreshold: 2,
			ResetTimeout:     100 * time.Millisecond,
			HalfOpenRequests: 1,
		}, zaptest.NewLogger(t), nil)
	}

	failing := func() error { return errors.New("upstream failure") }
	succeeding := func() error { return nil }

	t.Run("Initially Closed", func(t *testing.T) {
		cb := newCB(t)
		assert.Equal(t, StateClosed, cb.GetState())
	})

	t.Run("Opens After Failures", func(t *testing.T) {
		cb := newCB(t)

		// First failure keeps the circuit closed.
		err := cb.Execute(failing)
		assert.Error(t, err)
		assert.Equal(t, StateClosed, cb.GetState())

		// Second failure trips it.
		err = cb.Execute(failing)
		assert.Error(t, err)
		assert.Equal(t, StateOpen, cb.GetState())

		// Additional requests fail fast without reaching the function.
		called := false
		err = cb.Execute(func() error {
			called = true
			return nil
		})
		require.ErrorIs(t, err, ErrCircuitOpen)
		assert.False(t, called)
	})

	t.Run("Success Resets Failure Count", func(t *testing.T) {
		cb := newCB(t)

		require.Error(t, cb.Execute(failing))
		require.NoError(t, cb.Execute(succeeding))
		require.Error(t, cb.Execute(failing))

		// One failure after a success must not trip a threshold of two.
		assert.Equal(t, StateClosed, cb.GetState())
	})

	t.Run("Transitions to Half-Open", func(t *testing.T) {
		cb := newCB(t)

		for i := 0; i < 2; i++ {
			require.Error(t, cb.Execute(failing))
		}
		assert.Equal(t, StateOpen, cb.GetState())

		time.Sleep(150 * time.Millisecond)

		// The next request is allowed through as a probe; a failure
		// reopens the circuit.
		err := cb.Execute(failing)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
		assert.Equal(t, StateOpen, cb.GetState())
	})

	t.Run("Closes After Success", func(t *testing.T) {
		cb := newCB(t)

		for i := 0; i < 2; i++ {
			require.Error(t, cb.Execute(failing))
		}
		assert.Equal(t, StateOpen, cb.GetState())

		time.Sleep(150 * time.Millisecond)

		// A successful probe closes the circuit again.
		require.NoError(t, cb.Execute(succeeding))
		assert.Equal(t, StateClosed, cb.GetState())

		require.NoError(t, cb.Execute(succeeding))
	})

	t.Run("Half-Open Limits Probes", func(t *testing.T) {
		cb := newCB(t)

		for i := 0; i < 2; i++ {
			require.Error(t, cb.Execute(failing))
		}
		time.Sleep(150 * time.Millisecond)

		// First probe is admitted.
		assert.True(t, cb.AllowRequest())
		assert.Equal(t, StateHalfOpen, cb.GetState())

		// A second concurrent probe is not.
		assert.False(t, cb.AllowRequest())
	})
}

func TestCircuitBreakerRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	cb := New("bedrock", Config{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		HalfOpenRequests: 1,
	}, zaptest.NewLogger(t), registry)

	require.Error(t, cb.Execute(func() error { return errors.New("boom") }))

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["moraine_circuit_breaker_state"])
	assert.True(t, names["moraine_circuit_breaker_failures_total"])
	assert.True(t, names["moraine_circuit_breaker_trips_total"])
}
