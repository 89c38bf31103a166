// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns HTTP handler for Prometheus metrics
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// SecureHandler wraps Handler with bearer-token authentication. When
// secret is empty the endpoint is left open, matching the server's
// default of trusting its own deployment perimeter.
func SecureHandler(secret string) http.Handler {
	h := Handler()
	if secret == "" {
		return h
	}
	return RequireBearerToken(secret, h)
}

// RequireBearerToken wraps next so that requests must carry a JWT
// bearer token signed with secret using an HMAC algorithm. It is used
// to gate the /metrics and /events admin endpoints when a
// metrics_auth_secret is configured.
func RequireBearerToken(secret string, next http.Handler) http.Handler {
	key := []byte(secret)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		raw := strings.TrimPrefix(auth, prefix)

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			http.Error(w, "invalid bearer token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// StartServer starts a standalone metrics HTTP server. authSecret, if
// non-empty, gates /metrics behind RequireBearerToken.
func StartServer(addr, authSecret string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", SecureHandler(authSecret))

	return http.ListenAndServe(addr, mux)
}
