// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package vectorstore

import (
	"net"
	"net/url"
	"strconv"
)

const defaultQdrantPort = 6334

// hostFromURL extracts the host component from a "host:port" or full URL
// configuration value, defaulting to the value itself if it parses as a
// bare hostname.
func hostFromURL(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		return host
	}
	return raw
}

// portFromURL extracts the port from a configuration value, defaulting to
// Qdrant's gRPC port when none is present.
func portFromURL(raw string) int {
	if u, err := url.Parse(raw); err == nil && u.Port() != "" {
		if p, err := strconv.Atoi(u.Port()); err == nil {
			return p
		}
	}
	if _, portStr, err := net.SplitHostPort(raw); err == nil {
		if p, err := strconv.Atoi(portStr); err == nil {
			return p
		}
	}
	return defaultQdrantPort
}
