// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
)

// Auth returns middleware that requires the shared secret on every
// request, via either a Bearer token or HTTP Basic auth (any
// username, password == secret). An empty secret disables auth
// entirely — the zero-config default for local use.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			if checkAuthHeader(r.Header.Get("Authorization"), secret) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("WWW-Authenticate", `Basic realm="NomadFlow"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

func checkAuthHeader(header, secret string) bool {
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return constantTimeEqual(token, secret)
	}

	if encoded, ok := strings.CutPrefix(header, "Basic "); ok {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return false
		}
		parts := strings.SplitN(string(decoded), ":", 2)
		if len(parts) != 2 {
			return false
		}
		return constantTimeEqual(parts[1], secret)
	}

	return false
}

// constantTimeEqual compares a and b without leaking timing
// information proportional to the first mismatching byte.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
