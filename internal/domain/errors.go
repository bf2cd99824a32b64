package domain

import "errors"

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrInvalidTicketID    = errors.New("invalid ticket id")
	ErrMalformedEnvelope  = errors.New("malformed envelope")
	ErrSigningUnavailable = errors.New("signing unavailable")
	ErrSignatureInvalid   = errors.New("signature invalid")
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrOracleUnavailable  = errors.New("oracle unavailable")
	ErrAlreadyAdmitted    = errors.New("ticket already admitted")
	ErrNotDisplaying      = errors.New("presentation is not displaying")
	ErrNotLocked          = errors.New("presentation is not locked")
)
