// Package scanner turns decoded QR text into gate verdicts.
package scanner

import (
	"errors"
	"strings"
	"sync"

	"gatepass/internal/domain"
)

// ErrNotTicket is reported for decoded text that is not a ticket envelope.
var ErrNotTicket = errors.New("not a ticket QR")

type EnvelopeParser interface {
	ParseEnvelope(raw []byte) (domain.TicketEnvelope, error)
}

// Ingestor filters the decoder's callback stream. Consecutive identical
// reads are dropped so a code held in front of the camera is verified once.
type Ingestor struct {
	Parser EnvelopeParser

	mu   sync.Mutex
	last string
}

// OnDecoded returns fresh=false for empty or repeated text. A fresh read
// that does not parse returns ErrNotTicket; the text is still remembered.
func (i *Ingestor) OnDecoded(text string) (env domain.TicketEnvelope, fresh bool, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.TicketEnvelope{}, false, nil
	}
	i.mu.Lock()
	if text == i.last {
		i.mu.Unlock()
		return domain.TicketEnvelope{}, false, nil
	}
	i.last = text
	i.mu.Unlock()

	if i.Parser == nil {
		return domain.TicketEnvelope{}, true, ErrNotTicket
	}
	env, err = i.Parser.ParseEnvelope([]byte(text))
	if err != nil {
		return domain.TicketEnvelope{}, true, ErrNotTicket
	}
	return env, true, nil
}

// Forget clears the de-dupe memory so the same code can be scanned again.
func (i *Ingestor) Forget() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.last = ""
}
