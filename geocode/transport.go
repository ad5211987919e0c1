// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"io"
	"net/http"
	"time"

	"github.com/jcodagnone/gazetteer/utils/httputils"
)

// UserAgent is sent with every lookup request.
const UserAgent = "gazetteer/1.0 (+https://github.com/jcodagnone/gazetteer)"

// NewHTTPClient returns the client used by the lookup services. When trace is
// not nil every exchange is dumped to it.
func NewHTTPClient(trace io.Writer, traceBody bool) *http.Client {
	transport := http.DefaultTransport
	if trace != nil {
		transport = &httputils.LoggingRoundTripper{
			Transport: transport,
			Writer:    trace,
			DumpBody:  traceBody,
		}
	}

	transport = &httputils.AppendRequestHeadersRoundTripper{
		Transport: transport,
		Headers: map[string]string{
			"User-Agent": UserAgent,
			"Accept":     "application/json",
		},
	}

	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}
