package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/doctriage/doctriage/internal/core/domain"
	"github.com/doctriage/doctriage/internal/infrastructure/resilience"
)

// connectivityErrors are the NATS failures worth retrying: the client may
// reconnect between attempts, so a publish that failed now can succeed on
// the next try.
var connectivityErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
}

// classifyNATSError drives the resilience executor for the publish path.
// Caller-side cancellation neither retries nor trips the breaker.
func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), isConnectivityError(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func isConnectivityError(err error) bool {
	for _, sentinel := range connectivityErrors {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// wrapTemporaryIfNeeded tags retryable publish failures as ErrTemporary, so
// the HTTP layer maps an unreachable broker to 503 rather than 500.
func wrapTemporaryIfNeeded(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "nats publish", err)
	}
	return err
}
