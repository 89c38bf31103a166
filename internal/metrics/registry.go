// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

// Package metrics exposes Prometheus instrumentation for handshakes,
// sessions, crypto operations, and file transfers. Every collector in
// this package is registered against Registry rather than the default
// global registry, so a process can run the server and client in the
// same binary under test without colliding on metric names.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "depot"

// Registry is the collector registry backing every metric in this
// package and the handler returned by Handler.
var Registry = prometheus.NewRegistry()
