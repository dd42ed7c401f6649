// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"bufio"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// clientMessage is the externally-tagged JSON wire format the relay's
// tunnel server expects, one object per line.
type clientMessage struct {
	Authenticate string `json:"Authenticate,omitempty"`
	Hello        *uint16 `json:"Hello,omitempty"`
	Accept       string `json:"Accept,omitempty"`
}

type serverMessage struct {
	Challenge  string `json:"Challenge,omitempty"`
	Hello      *uint16 `json:"Hello,omitempty"`
	Connection string `json:"Connection,omitempty"`
	Error      string `json:"Error,omitempty"`
	Heartbeat  bool   `json:"-"`
}

// writeMessage writes v as a single JSON line.
func writeMessage(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// readServerMessage reads one line and decodes it into a serverMessage.
// The server's unit variant ("Heartbeat") arrives as a bare JSON string
// rather than an object.
func readServerMessage(r *bufio.Reader) (serverMessage, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return serverMessage{}, err
	}

	var raw json.RawMessage
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return serverMessage{}, fmt.Errorf("decode server message: %w", err)
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "Heartbeat" {
			return serverMessage{Heartbeat: true}, nil
		}
		return serverMessage{}, fmt.Errorf("unexpected server message: %s", asString)
	}

	var msg serverMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return serverMessage{}, fmt.Errorf("decode server message: %w", err)
	}
	return msg, nil
}

// authenticateTag computes the HMAC-SHA256 of challenge under secret,
// hex-encoded, per the tunnel protocol's challenge/response handshake.
func authenticateTag(challenge, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(challenge))
	return hex.EncodeToString(mac.Sum(nil))
}

// newChallengeID is used only by tests to fabricate a plausible
// challenge value; production challenges always come from the server.
func newChallengeID() string {
	return uuid.NewString()
}
