// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestHandshakeReusesBufferedReaderAcrossServe guards against reading
// the handshake reply and the first post-handshake message (a
// heartbeat, in this case) through two independent bufio.Readers over
// the same connection, which would silently drop whichever bytes the
// first reader had already buffered.
func TestHandshakeReusesBufferedReaderAcrossServe(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	secret := "shared-secret"
	challenge := "abc123"
	assignedPort := uint16(5000)

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)

		require.NoError(t, writeMessage(serverConn, serverMessage{Challenge: challenge}))

		reader := bufio.NewReader(serverConn)

		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		require.Contains(t, line, authenticateTag(challenge, secret))

		_, err = reader.ReadString('\n')
		require.NoError(t, err)

		require.NoError(t, writeMessage(serverConn, serverMessage{Hello: &assignedPort}))

		// Immediately follow with a heartbeat in the same write, which
		// may arrive in the same read as the Hello reply on the client
		// side if the reader is shared correctly. The wire heartbeat is
		// a bare JSON string, not an object.
		_, err = serverConn.Write([]byte("\"Heartbeat\"\n"))
		require.NoError(t, err)
	}()

	reader := bufio.NewReader(clientConn)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	port, err := handshake(ctx, clientConn, reader, secret)
	require.NoError(t, err)
	require.Equal(t, int(assignedPort), port)

	msg, err := readServerMessage(reader)
	require.NoError(t, err)
	require.True(t, msg.Heartbeat)

	<-serverDone
}
