// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package ttyd

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStartFailsWhenBinaryMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	s := New(17681, "nomadflow", "")
	err := s.Start(context.Background())
	require.Error(t, err)
}

func TestPortInUseDetection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	s := New(port, "nomadflow", "")
	require.True(t, s.portInUse())
}
