// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	now := time.Unix(1700000000, 0)
	l := NewRateLimiter(1, 2)
	l.now = func() time.Time { return now }

	ok, _ := l.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = l.Allow("10.0.0.1")
	assert.True(t, ok)

	ok, wait := l.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.InDelta(t, time.Second.Seconds(), wait.Seconds(), 0.01)

	ok, _ = l.Allow("10.0.0.2")
	assert.True(t, ok, "clients have separate buckets")

	now = now.Add(time.Second)
	ok, _ = l.Allow("10.0.0.1")
	assert.True(t, ok, "tokens refill over time")
}

func TestRateLimiter_MinimumBurst(t *testing.T) {
	l := NewRateLimiter(1, 0)
	assert.Equal(t, 1, l.burst)
	ok, _ := l.Allow("client")
	assert.True(t, ok)
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	now := time.Unix(1700000000, 0)
	l := NewRateLimiter(1, 1)
	l.now = func() time.Time { return now }

	for i := 0; i < maxTrackedClients; i++ {
		l.Allow(time.Duration(i).String())
	}
	assert.Len(t, l.clients, maxTrackedClients)

	now = now.Add(clientIdleTTL + time.Second)
	l.Allow("fresh")
	assert.Len(t, l.clients, 1)
}
