package domain

import (
	"context"
	"time"
)

// Admission records that a ticket was let through a gate.
type Admission struct {
	ID         string
	TicketID   string
	Owner      string
	Operator   string
	GateID     string
	Nonce      string
	AdmittedAt time.Time
}

type AdmissionRepository interface {
	// Record stores the admission, returning ErrAlreadyAdmitted when the
	// ticket has been admitted before.
	Record(ctx context.Context, admission Admission) (Admission, error)
	GetByTicket(ctx context.Context, ticketID string) (*Admission, error)
}
