// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthenticateTagDeterministic(t *testing.T) {
	a := authenticateTag("challenge-1", "secret")
	b := authenticateTag("challenge-1", "secret")
	require.Equal(t, a, b)

	c := authenticateTag("challenge-1", "other-secret")
	require.NotEqual(t, a, c)
}

func TestReadServerMessageHeartbeat(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("\"Heartbeat\"\n"))
	msg, err := readServerMessage(r)
	require.NoError(t, err)
	require.True(t, msg.Heartbeat)
}

func TestReadServerMessageChallenge(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString(`{"Challenge":"` + newChallengeID() + `"}` + "\n"))
	msg, err := readServerMessage(r)
	require.NoError(t, err)
	require.NotEmpty(t, msg.Challenge)
}

func TestWriteMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	port := uint16(4000)
	require.NoError(t, writeMessage(&buf, clientMessage{Hello: &port}))
	require.Contains(t, buf.String(), `"Hello":4000`)
}
