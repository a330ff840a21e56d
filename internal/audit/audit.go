package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Outcome of a privileged command.
type Outcome string

const (
	OutcomeGranted  Outcome = "granted"
	OutcomeRevoked  Outcome = "revoked"
	OutcomeNoop     Outcome = "noop"
	OutcomeRefused  Outcome = "refused"
	OutcomeDenied   Outcome = "denied"
	OutcomeExecuted Outcome = "executed"
)

// Entry records one privileged command outcome. It is a trail only;
// nothing reads it back into the role store.
type Entry struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Actor   string    `json:"actor"`
	Command string    `json:"command"`
	Target  string    `json:"target,omitempty"`
	Outcome Outcome   `json:"outcome"`
}

type Sink interface {
	Record(ctx context.Context, e Entry) error
}

// NewEntry fills ID and timestamp.
func NewEntry(actor, command, target string, outcome Outcome) Entry {
	return Entry{
		ID:      uuid.NewString(),
		At:      time.Now().UTC(),
		Actor:   actor,
		Command: command,
		Target:  target,
		Outcome: outcome,
	}
}

type nop struct{}

func (nop) Record(context.Context, Entry) error { return nil }

// Nop discards entries.
func Nop() Sink { return nop{} }

type multi []Sink

// Multi records into every sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	if len(m) == 0 {
		return Nop()
	}
	return m
}

func (m multi) Record(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
