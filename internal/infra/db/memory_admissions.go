package db

import (
	"context"
	"sync"

	"gatepass/internal/domain"
)

// MemoryAdmissionRepository is used when no database is configured. Its
// once-only guarantee holds only within one process.
type MemoryAdmissionRepository struct {
	mu       sync.Mutex
	byTicket map[string]domain.Admission
}

func NewMemoryAdmissionRepository() *MemoryAdmissionRepository {
	return &MemoryAdmissionRepository{byTicket: make(map[string]domain.Admission)}
}

func (r *MemoryAdmissionRepository) Record(ctx context.Context, a domain.Admission) (domain.Admission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byTicket[a.TicketID]; ok {
		return domain.Admission{}, domain.ErrAlreadyAdmitted
	}
	a = prepareAdmission(a)
	r.byTicket[a.TicketID] = a
	return a, nil
}

func (r *MemoryAdmissionRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.Admission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byTicket[ticketID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

var _ domain.AdmissionRepository = (*MemoryAdmissionRepository)(nil)
