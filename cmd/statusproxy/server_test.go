package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestUpstreamLimiterBurst(t *testing.T) {
	assert := assert.New(t)

	// burst tracks the per-second limit, so simultaneous cold misses across
	// distinct endpoints are not serialized behind the refill interval
	lim := upstreamLimiter(rate.Limit(8))
	assert.Equal(rate.Limit(8), lim.Limit())
	assert.Equal(8, lim.Burst())

	// fractional or zero limits still admit one call
	assert.Equal(1, upstreamLimiter(rate.Limit(0.5)).Burst())
}
