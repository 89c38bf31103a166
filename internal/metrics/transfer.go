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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ItemsTransferred tracks upload and download requests by direction,
	// kind, and outcome; listing requests are not counted.
	ItemsTransferred = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfers",
			Name:      "items_total",
			Help:      "Total number of file uploads and file or directory downloads handled",
		},
		[]string{"direction", "kind", "status"}, // upload/download, file/tree, success/failure
	)

	// TransferBytes tracks the size of files moved over the wire.
	TransferBytes = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transfers",
			Name:      "bytes",
			Help:      "Size in bytes of transferred files",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 12), // 1KiB to 4GiB
		},
		[]string{"direction"}, // upload, download
	)

	// TransferErrors tracks transfer failures by the internal error code
	// that produced them.
	TransferErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfers",
			Name:      "errors_total",
			Help:      "Total number of transfer failures by error code",
		},
		[]string{"code"}, // errs.Code name, e.g. exists, unsafe_path, write_fail, checksum
	)

	// RekeysPerformed tracks record-channel rekeys by which side
	// initiated them.
	RekeysPerformed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfers",
			Name:      "rekeys_total",
			Help:      "Total number of session rekeys performed",
		},
		[]string{"initiator"}, // client, server
	)
)
