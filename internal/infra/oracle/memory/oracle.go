// Package memory is an in-process ownership ledger used by tests, demos and
// gatepassd when no JSON-RPC endpoint is configured.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gatepass/internal/domain"
)

type Oracle struct {
	mu     sync.RWMutex
	owners map[string]string
	err    error
}

func New() *Oracle {
	return &Oracle{owners: make(map[string]string)}
}

// Parse builds a ledger from "ticketId=address" entries.
func Parse(entries []string) (*Oracle, error) {
	o := New()
	for _, entry := range entries {
		id, owner, ok := strings.Cut(entry, "=")
		id, owner = strings.TrimSpace(id), strings.TrimSpace(owner)
		if !ok || id == "" || !domain.IsAddress(owner) {
			return nil, fmt.Errorf("invalid ticket owner entry %q", entry)
		}
		o.SetOwner(id, owner)
	}
	return o, nil
}

// SetOwner records a mint or transfer.
func (o *Oracle) SetOwner(ticketID, owner string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.owners[ticketID] = domain.NormalizeAddress(owner)
}

func (o *Oracle) Burn(ticketID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.owners, ticketID)
}

// FailWith makes every subsequent read fail with err until it is cleared
// with nil.
func (o *Oracle) FailWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *Oracle) OwnerOf(ctx context.Context, ticketID domain.TicketID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrOracleUnavailable, err)
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrOracleUnavailable, o.err)
	}
	owner, ok := o.owners[ticketID.String()]
	if !ok {
		return "", domain.ErrTicketNotFound
	}
	return owner, nil
}

var _ domain.OwnershipOracle = (*Oracle)(nil)
