package crawler

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// Chromium reports network-stack failures as net::ERR_* strings in the
// navigation error message. These are the signatures worth retrying; anything
// else (bad URL, closed target, renderer crash) fails fast.
var transientSignatures = []string{
	"net::ERR_CONNECTION_CLOSED",
	"net::ERR_CONNECTION_RESET",
	"net::ERR_CONNECTION_REFUSED",
	"net::ERR_TIMED_OUT",
	"net::ERR_NETWORK_CHANGED",
	"net::ERR_EMPTY_RESPONSE",
	"net::ERR_NAME_NOT_RESOLVED",
}

// isTransient reports whether a page fetch failure is worth retrying.
// Structured errors are checked first; the Chromium signatures are a fallback
// because playwright surfaces them only as message text.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}

	msg := err.Error()
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}

	// Playwright wait timeouts carry no structured type across the wire.
	return strings.Contains(msg, "Timeout") && strings.Contains(msg, "exceeded")
}
