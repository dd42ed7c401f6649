// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import "net/http"

// HealthHandler serves the unauthenticated liveness endpoint.
type HealthHandler struct {
	TmuxSession string
	APIPort     int
}

func NewHealthHandler(tmuxSession string, apiPort int) *HealthHandler {
	return &HealthHandler{TmuxSession: tmuxSession, APIPort: apiPort}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"tmuxSession": h.TmuxSession,
		"apiPort":     h.APIPort,
	})
}
