// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package wsbridge forwards frames bidirectionally between two
// WebSocket connections until either side terminates.
package wsbridge

import (
	"github.com/gorilla/websocket"
)

// Run copies frames between a and b in both directions. It blocks
// until one direction fails or closes, then closes both connections
// and returns. Text frames are forwarded as text, binary as binary;
// there is no buffering or backpressure beyond what each connection's
// write deadline already provides.
func Run(a, b *websocket.Conn) {
	done := make(chan struct{}, 2)

	forward := func(from, to *websocket.Conn) {
		defer func() { done <- struct{}{} }()
		for {
			messageType, data, err := from.ReadMessage()
			if err != nil {
				return
			}
			if err := to.WriteMessage(messageType, data); err != nil {
				return
			}
		}
	}

	go forward(a, b)
	go forward(b, a)

	<-done
	a.Close()
	b.Close()
}
