package scanner

import (
	"context"
	"fmt"
	"sync"

	"gatepass/internal/domain"
	"gatepass/internal/usecase"
)

type State int

const (
	StateIdle State = iota
	StateScanning
	StateVerifying
	StateDecided
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateVerifying:
		return "verifying"
	case StateDecided:
		return "decided"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Snapshot struct {
	State     State
	Candidate *domain.TicketEnvelope
	Result    *domain.VerifyResult
	Action    domain.Disposition
	ScanError error
}

// Machine is the operator-side state machine. Decoder callbacks never
// block: verification runs on its own goroutine and its result is applied
// only if no reset happened in the meantime.
type Machine struct {
	Ingestor *Ingestor
	Verifier usecase.Verifier
	Decide   *usecase.DecideGate
	// OnChange, when set, receives every new snapshot. It is called without
	// the machine lock held.
	OnChange func(Snapshot)

	mu         sync.Mutex
	ctx        context.Context
	state      State
	generation uint64
	candidate  *domain.TicketEnvelope
	result     *domain.VerifyResult
	action     domain.Disposition
	scanErr    error
	inflight   sync.WaitGroup
}

// Start leaves Idle and begins accepting decoded text. ctx bounds every
// verification started until Stop.
func (m *Machine) Start(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	m.resetLocked(StateScanning)
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)
}

// OnDecoded feeds one decoder callback. It reports whether a verification
// was started.
func (m *Machine) OnDecoded(text string) bool {
	m.mu.Lock()
	if m.state != StateScanning {
		m.mu.Unlock()
		return false
	}
	env, fresh, err := m.Ingestor.OnDecoded(text)
	if !fresh {
		m.mu.Unlock()
		return false
	}
	if err != nil {
		m.scanErr = err
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.notify(snap)
		return false
	}

	m.state = StateVerifying
	m.scanErr = nil
	m.candidate = &env
	m.generation++
	generation, ctx := m.generation, m.ctx
	m.inflight.Add(1)
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)

	go m.verify(ctx, generation, env)
	return true
}

func (m *Machine) verify(ctx context.Context, generation uint64, env domain.TicketEnvelope) {
	defer m.inflight.Done()
	result := m.Verifier.Verify(ctx, env)
	decision, _ := m.Decide.Execute(ctx, result)
	if !decision.Authorized {
		decision.Action = domain.DispositionDeny
	}

	m.mu.Lock()
	if generation != m.generation || m.state != StateVerifying {
		m.mu.Unlock()
		return
	}
	m.state = StateDecided
	m.result = &result
	m.action = decision.Action
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)
}

// Next returns to Scanning for the next attendee. It serves both "scan
// again" and "admit next", and discards any verification still in flight.
func (m *Machine) Next() {
	m.mu.Lock()
	if m.state == StateIdle {
		m.mu.Unlock()
		return
	}
	m.resetLocked(StateScanning)
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)
}

// Stop tears the machine down to Idle. It stays there until Start.
func (m *Machine) Stop() {
	m.mu.Lock()
	m.resetLocked(StateIdle)
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)
}

// Wait blocks until every verification goroutine has returned.
func (m *Machine) Wait() {
	m.inflight.Wait()
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) resetLocked(next State) {
	m.state = next
	m.generation++
	m.candidate = nil
	m.result = nil
	m.action = ""
	m.scanErr = nil
	if m.Ingestor != nil {
		m.Ingestor.Forget()
	}
	if m.ctx == nil {
		m.ctx = context.Background()
	}
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		State:     m.state,
		Candidate: m.candidate,
		Result:    m.result,
		Action:    m.action,
		ScanError: m.scanErr,
	}
}

func (m *Machine) notify(snap Snapshot) {
	if m.OnChange != nil {
		m.OnChange(snap)
	}
}
