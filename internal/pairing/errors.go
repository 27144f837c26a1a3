package pairing

import "errors"

var (
	// ErrInvalidPhone means the input failed the phone-number pattern
	// check; no attempt was started.
	ErrInvalidPhone = errors.New("pairing: invalid phone number")

	// ErrAttemptInFlight means the requester already owns a running
	// attempt; overlapping attempts are rejected, never raced.
	ErrAttemptInFlight = errors.New("pairing: an attempt is already in flight")

	// ErrLinkingTimeout means no open-connection signal arrived within
	// the bounded wait.
	ErrLinkingTimeout = errors.New("pairing: linking timed out")

	// ErrLinkingClosed means the connection closed before the device
	// finished linking.
	ErrLinkingClosed = errors.New("pairing: connection closed before linking finished")

	// ErrCancelled means the attempt was cancelled by its requester.
	ErrCancelled = errors.New("pairing: attempt cancelled")
)
