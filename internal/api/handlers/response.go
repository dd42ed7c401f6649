// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package handlers implements the laptop server's HTTP handlers: the
// repository/feature/branch coordinator API and the terminal-daemon
// reverse proxy.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/nomadflowcode/nomadflow/internal/nomaderr"
)

// errorBody is the wire error envelope: a flat {"detail": message}.
type errorBody struct {
	Detail string `json:"detail"`
}

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes err as {"detail": message}, classifying its status
// from its nomaderr.Kind.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, nomaderr.HTTPStatus(err), errorBody{Detail: err.Error()})
}

// WriteDetail writes a flat error body with an explicit status,
// bypassing nomaderr classification for handler-level validation
// failures that have no corresponding error kind.
func WriteDetail(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, errorBody{Detail: detail})
}

// decodeJSON decodes r's body into v, returning an error so the
// caller can route it through WriteError.
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nomaderr.NewOther("empty request body")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return nomaderr.NewOther("invalid request body: " + err.Error())
	}
	return nil
}
