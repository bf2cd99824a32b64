package crypto

import "gatepass/internal/domain"

type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) CanonicalizePayload(p domain.TicketPayload) []byte {
	return CanonicalizePayload(p)
}

func (s *Service) RecoverAddress(message []byte, signature string) (string, error) {
	return RecoverAddress(message, signature)
}

func (s *Service) ParseEnvelope(raw []byte) (domain.TicketEnvelope, error) {
	return ParseEnvelope(raw)
}
