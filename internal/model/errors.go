package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when no row matches the natural key.
	ErrNotFound = errors.New("not found")

	// ErrTransient marks a remote failure that is worth retrying after a backoff (rate limiting).
	ErrTransient = errors.New("remote rate limited")
	// ErrRejected marks a remote call the endpoint refused outright.
	ErrRejected = errors.New("remote call rejected")
	// ErrRetriesExhausted is returned once the retry budget of a remote call is spent.
	ErrRetriesExhausted = errors.New("retries exhausted")

	ErrMalformedResult      = errors.New("malformed remote result")
	ErrInvalidResultType    = fmt.Errorf("%w: invalid result type", ErrMalformedResult)
	ErrUnexpectedResultType = fmt.Errorf("%w: unexpected result type", ErrMalformedResult)

	ErrStoreTransient  = errors.New("transient store failure")
	ErrSourceMalformed = errors.New("malformed source data")

	ErrSlotsUnknown    = errors.New("slot count unknown")
	ErrRoundUnknown    = errors.New("current round unknown")
	ErrMissingRound    = errors.New("missing round flags")
	ErrRoundOutOfRange = errors.New("round out of range")

	ErrInvalidAddress = errors.New("invalid address")
	ErrUnknownJob     = errors.New("unknown sync job")
)
