package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerTripsAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(true, 3, time.Minute, time.Minute, nil)

	assert.False(t, cb.RecordFailure())
	assert.False(t, cb.RecordFailure())
	assert.True(t, cb.RecordFailure(), "third failure within the window must trip the breaker")
	assert.True(t, cb.IsOpen())
}

func TestBreakerDisabled(t *testing.T) {
	cb := NewCircuitBreaker(false, 1, time.Minute, time.Minute, nil)

	assert.False(t, cb.RecordFailure())
	assert.False(t, cb.IsOpen())
}

func TestBreakerResetsAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(true, 1, time.Minute, 10*time.Millisecond, nil)

	assert.True(t, cb.RecordFailure())
	assert.True(t, cb.IsOpen())

	time.Sleep(20 * time.Millisecond)
	assert.False(t, cb.IsOpen(), "breaker must close again after the reset timeout")
}

func TestBreakerSuccessClearsFailures(t *testing.T) {
	cb := NewCircuitBreaker(true, 2, time.Minute, time.Minute, nil)

	assert.False(t, cb.RecordFailure())
	cb.RecordSuccess()
	assert.False(t, cb.RecordFailure(), "a success in between must restart the failure count")
}

func TestBreakerManualReset(t *testing.T) {
	cb := NewCircuitBreaker(true, 1, time.Minute, time.Hour, nil)

	assert.True(t, cb.RecordFailure())
	cb.Reset()
	assert.False(t, cb.IsOpen())
}
