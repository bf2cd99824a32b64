// Package holder drives the ticket holder's side of a gate presentation:
// re-confirming the wallet, then showing a QR credential that rotates until
// the session ends.
package holder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gatepass/internal/clock"
	"gatepass/internal/domain"
	"gatepass/internal/usecase"
)

const DefaultSessionDuration = 300 * time.Second

type State int

const (
	StateLocked State = iota
	StateConfirming
	StateDisplaying
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateConfirming:
		return "confirming"
	case StateDisplaying:
		return "displaying"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// View is what a presentation surface should show right now.
type View struct {
	State     State
	Visible   bool
	TicketID  domain.TicketID
	Envelope  *domain.TicketEnvelope
	Remaining time.Duration
	Err       error
}

type Builder interface {
	Execute(ctx context.Context, req usecase.BuildCredentialRequest) (domain.TicketEnvelope, error)
}

var errRepeatedNonce = errors.New("credential builder repeated a nonce")

// Session holds the presentation state machine. Envelopes are produced only
// while Displaying; Close and session timeout both return to Locked and
// discard any build that was in flight.
type Session struct {
	Builder  Builder
	Crypto   usecase.CryptoService
	Signer   domain.Signer
	TicketID domain.TicketID
	Clock    clock.Clock
	Duration time.Duration

	mu        sync.Mutex
	state     State
	epoch     uint64
	visible   bool
	current   *domain.TicketEnvelope
	lastNonce string
	deadline  time.Time
	lastErr   error
}

// UnlockChallenge is the message the holder re-signs to open a session.
func UnlockChallenge(ticketID domain.TicketID, address string, timestamp int64) []byte {
	return []byte(fmt.Sprintf("gatepass-unlock:%s:%s:%d", ticketID.String(), domain.NormalizeAddress(address), timestamp))
}

// Unlock re-confirms that the signer still controls its address and starts
// displaying. It only succeeds from Locked.
func (s *Session) Unlock(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateLocked {
		s.mu.Unlock()
		return domain.ErrNotLocked
	}
	s.state = StateConfirming
	s.lastErr = nil
	epoch := s.epoch
	s.mu.Unlock()

	err := s.confirm(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.state != StateConfirming {
		return fmt.Errorf("%w: confirmation cancelled", domain.ErrSigningUnavailable)
	}
	if err != nil {
		s.state = StateLocked
		s.lastErr = err
		return err
	}
	s.state = StateDisplaying
	s.visible = true
	s.deadline = s.clock().Now().Add(s.duration())
	s.current = nil
	s.lastNonce = ""
	return nil
}

func (s *Session) confirm(ctx context.Context) error {
	if s.Signer == nil || s.Crypto == nil {
		return domain.ErrSigningUnavailable
	}
	address := s.Signer.Address()
	challenge := UnlockChallenge(s.TicketID, address, clock.Unix(s.clock()))
	signature, err := s.Signer.SignMessage(ctx, challenge)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSigningUnavailable, err)
	}
	recovered, err := s.Crypto.RecoverAddress(challenge, signature)
	if err != nil || !domain.SameAddress(recovered, address) {
		return fmt.Errorf("%w: confirmation signature does not match %s", domain.ErrSignatureInvalid, address)
	}
	return nil
}

// Rotate builds a new envelope and makes it current. On failure the
// previous envelope is cleared rather than left on screen.
func (s *Session) Rotate(ctx context.Context) (domain.TicketEnvelope, error) {
	s.mu.Lock()
	if s.state != StateDisplaying {
		s.mu.Unlock()
		return domain.TicketEnvelope{}, domain.ErrNotDisplaying
	}
	epoch, last := s.epoch, s.lastNonce
	s.mu.Unlock()

	env, err := s.build(ctx, last)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	if s.epoch != epoch || s.state != StateDisplaying {
		return domain.TicketEnvelope{}, domain.ErrNotDisplaying
	}
	if err != nil {
		s.current = nil
		s.lastErr = err
		return domain.TicketEnvelope{}, err
	}
	s.current = &env
	s.lastNonce = domain.NormalizeNonce(env.Payload.Nonce)
	s.lastErr = nil
	return env, nil
}

func (s *Session) build(ctx context.Context, lastNonce string) (domain.TicketEnvelope, error) {
	if s.Builder == nil {
		return domain.TicketEnvelope{}, domain.ErrSigningUnavailable
	}
	req := usecase.BuildCredentialRequest{TicketID: s.TicketID, Signer: s.Signer}
	for attempt := 0; attempt < 2; attempt++ {
		env, err := s.Builder.Execute(ctx, req)
		if err != nil {
			return domain.TicketEnvelope{}, err
		}
		if domain.NormalizeNonce(env.Payload.Nonce) != lastNonce {
			return env, nil
		}
	}
	return domain.TicketEnvelope{}, errRepeatedNonce
}

// Tick re-reads the clock against the session deadline and locks once it
// has passed. Missed ticks do not extend the session.
func (s *Session) Tick() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	return s.viewLocked()
}

// Toggle hides or reveals the code without stopping rotation.
func (s *Session) Toggle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDisplaying {
		return domain.ErrNotDisplaying
	}
	s.visible = !s.visible
	return nil
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockLocked()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) lockLocked() {
	s.state = StateLocked
	s.epoch++
	s.visible = false
	s.current = nil
	s.deadline = time.Time{}
}

func (s *Session) expireLocked() {
	if s.state == StateDisplaying && s.remainingLocked() <= 0 {
		s.lockLocked()
	}
}

func (s *Session) remainingLocked() time.Duration {
	if s.state != StateDisplaying {
		return 0
	}
	left := s.deadline.Sub(s.clock().Now())
	if left < 0 {
		return 0
	}
	return left
}

func (s *Session) viewLocked() View {
	v := View{
		State:     s.state,
		Visible:   s.visible,
		TicketID:  s.TicketID,
		Remaining: s.remainingLocked(),
		Err:       s.lastErr,
	}
	if s.current != nil && clock.Unix(s.clock()) <= s.current.Payload.Expiry {
		env := *s.current
		v.Envelope = &env
	}
	return v
}

func (s *Session) duration() time.Duration {
	if s.Duration < time.Second {
		return DefaultSessionDuration
	}
	return s.Duration
}

func (s *Session) clock() clock.Clock {
	if s.Clock == nil {
		return clock.NewSystem()
	}
	return s.Clock
}
