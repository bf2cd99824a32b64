package db

import (
	"context"
	"errors"
	"time"

	"gatepass/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var errDBUnavailable = errors.New("db unavailable")

// AdmissionRepository relies on the unique index on ticket_id to admit a
// ticket at most once across every gate writing to the same database.
type AdmissionRepository struct {
	db *gorm.DB
}

func NewAdmissionRepository(db *gorm.DB) *AdmissionRepository {
	return &AdmissionRepository{db: db}
}

func (r *AdmissionRepository) Record(ctx context.Context, a domain.Admission) (domain.Admission, error) {
	if r.db == nil {
		return domain.Admission{}, errDBUnavailable
	}
	a = prepareAdmission(a)
	model := admissionModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Admission{}, domain.ErrAlreadyAdmitted
		}
		return domain.Admission{}, err
	}
	return a, nil
}

func (r *AdmissionRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.Admission, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model AdmissionModel
	err := r.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out := admissionFromModel(model)
	return &out, nil
}

func prepareAdmission(a domain.Admission) domain.Admission {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AdmittedAt.IsZero() {
		a.AdmittedAt = time.Now().UTC()
	}
	a.AdmittedAt = a.AdmittedAt.UTC().Truncate(time.Microsecond)
	return a
}

func admissionModelFromDomain(a domain.Admission) AdmissionModel {
	return AdmissionModel{
		ID:         a.ID,
		TicketID:   a.TicketID,
		Owner:      a.Owner,
		Operator:   a.Operator,
		GateID:     a.GateID,
		Nonce:      a.Nonce,
		AdmittedAt: a.AdmittedAt,
	}
}

func admissionFromModel(m AdmissionModel) domain.Admission {
	return domain.Admission{
		ID:         m.ID,
		TicketID:   m.TicketID,
		Owner:      m.Owner,
		Operator:   m.Operator,
		GateID:     m.GateID,
		Nonce:      m.Nonce,
		AdmittedAt: m.AdmittedAt.UTC(),
	}
}

var _ domain.AdmissionRepository = (*AdmissionRepository)(nil)
