package domain

import "context"

// Signer is the holder's wallet capability: it exposes an address and
// produces signatures recoverable to that address.
type Signer interface {
	Address() string
	SignMessage(ctx context.Context, message []byte) (string, error)
}

// OwnershipOracle reads the current owner of a ticket from the
// authoritative ledger. Implementations return ErrTicketNotFound when the
// ledger has no such token and ErrOracleUnavailable (wrapped) when the read
// itself failed.
type OwnershipOracle interface {
	OwnerOf(ctx context.Context, ticketID TicketID) (string, error)
}
