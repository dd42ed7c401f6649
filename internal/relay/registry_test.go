// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsPrivilegedPort(t *testing.T) {
	r := NewRegistry()
	_, result := r.Register("1.2.3.4", 80, "")
	require.Equal(t, RegisterBadPort, result)
}

func TestRegisterGeneratesSubdomain(t *testing.T) {
	r := NewRegistry()
	subdomain, result := r.Register("1.2.3.4", 9000, "")
	require.Equal(t, RegisterOK, result)
	require.Len(t, subdomain, 6)
}

func TestRegisterValidatesPreferredSubdomain(t *testing.T) {
	r := NewRegistry()

	_, result := r.Register("1.2.3.4", 9000, "ab")
	require.Equal(t, RegisterBadSubdomain, result)

	_, result = r.Register("1.2.3.4", 9000, "-leading")
	require.Equal(t, RegisterBadSubdomain, result)

	_, result = r.Register("1.2.3.4", 9000, "trailing-")
	require.Equal(t, RegisterBadSubdomain, result)

	subdomain, result := r.Register("1.2.3.4", 9000, "my-app")
	require.Equal(t, RegisterOK, result)
	require.Equal(t, "my-app", subdomain)
}

func TestRegisterRejectsSubdomainTakenByAnotherIP(t *testing.T) {
	r := NewRegistry()
	_, result := r.Register("1.2.3.4", 9000, "taken")
	require.Equal(t, RegisterOK, result)

	_, result = r.Register("5.6.7.8", 9001, "taken")
	require.Equal(t, RegisterSubdomainTaken, result)
}

func TestRegisterAllowsSameIPReregistration(t *testing.T) {
	r := NewRegistry()
	_, result := r.Register("1.2.3.4", 9000, "mine")
	require.Equal(t, RegisterOK, result)

	_, result = r.Register("1.2.3.4", 9500, "mine")
	require.Equal(t, RegisterOK, result)

	port, ok := r.Resolve("mine")
	require.True(t, ok)
	require.Equal(t, 9500, port)
}

func TestRegisterEnforcesMaxTunnelsPerIP(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < maxTunnelsPerIP; i++ {
		_, result := r.Register("1.2.3.4", 9000+i, "")
		require.Equal(t, RegisterOK, result)
	}
	_, result := r.Register("1.2.3.4", 9999, "")
	require.Equal(t, RegisterTooManyTunnels, result)
}

func TestRegisterEnforcesHourlyRateLimit(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < maxRegistrationsPerHour; i++ {
		subdomain, result := r.Register("9.9.9.9", 9000, "")
		require.Equal(t, RegisterOK, result)
		r.mu.Lock()
		delete(r.tunnels, subdomain)
		r.mu.Unlock()
	}

	_, result := r.Register("9.9.9.9", 9000, "")
	require.Equal(t, RegisterTooManyAttempts, result)
}

func TestEvictRemovesStaleTunnels(t *testing.T) {
	r := NewRegistry()
	r.tunnels["stale"] = &tunnelEntry{port: 9000, clientIP: "1.1.1.1", lastUsed: time.Now().Add(-25 * time.Hour)}
	r.tunnels["fresh"] = &tunnelEntry{port: 9001, clientIP: "1.1.1.1", lastUsed: time.Now()}

	removed := r.Evict()
	require.Equal(t, 1, removed)
	require.False(t, r.Known("stale"))
	require.True(t, r.Known("fresh"))
}

func TestFirstLabel(t *testing.T) {
	require.Equal(t, "abc123", firstLabel("abc123.tunnel.nomadflowcode.dev"))
	require.Equal(t, "abc123", firstLabel("abc123.tunnel.nomadflowcode.dev:443"))
}
