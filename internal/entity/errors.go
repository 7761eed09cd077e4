package entity

import (
	"context"
	"errors"
	"net"
	"strings"
)

var (
	// ErrConfiguration marks missing or invalid configuration. Fatal at
	// startup, surfaced per-account at request time.
	ErrConfiguration = errors.New("configuration error")

	// ErrDecryption marks a credential field that could not be decrypted.
	// Logged as a warning; the field is left in its encoded form.
	ErrDecryption = errors.New("decryption failed")

	// ErrUnsupportedExchange marks an account whose exchange resolves to no
	// registered driver. Immediately terminal for that account, no retry.
	ErrUnsupportedExchange = errors.New("unsupported exchange")

	// ErrUpstreamPricing marks a failed price lookup. Never fatal: pricing is
	// a best-effort enrichment.
	ErrUpstreamPricing = errors.New("upstream pricing unavailable")

	// ErrNoAccounts is returned when the credential store holds zero active
	// accounts. The HTTP boundary maps it to 404.
	ErrNoAccounts = errors.New("no active accounts found")
)

// IsTimeoutError classifies a fetch failure as timeout-class: the remote
// endpoint did not respond within the call deadline. Timeout-class errors are
// never retried. Driver errors cross a REST boundary and lose their concrete
// type, so message sniffing backs up the typed checks.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out")
}
