package appointment

import (
	"slices"

	"github.com/hackgods/student-eservices/internal/apperr"
)

type Status string

const (
	StatusPending     Status = "PENDING"
	StatusConfirmed   Status = "CONFIRMED"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
	StatusRescheduled Status = "RESCHEDULED"
	StatusNoShow      Status = "NO_SHOW"
)

var transitions = map[Status][]Status{
	StatusPending:     {StatusConfirmed, StatusCancelled, StatusRescheduled, StatusNoShow},
	StatusConfirmed:   {StatusCompleted, StatusCancelled, StatusRescheduled, StatusNoShow},
	StatusRescheduled: {StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusCompleted:   nil,
	StatusCancelled:   nil,
	StatusNoShow:      nil,
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := transitions[st]; !ok {
		return "", apperr.Validationf("unknown appointment status %q", s)
	}
	return st, nil
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// HoldsSlot reports whether an appointment in this status occupies a unit of
// its slot's capacity.
func (s Status) HoldsSlot() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusRescheduled
}

func (s Status) CanTransitionTo(to Status) bool {
	return slices.Contains(transitions[s], to)
}

func checkTransition(from, to Status) error {
	if !from.CanTransitionTo(to) {
		return apperr.InvalidStatef("cannot move appointment from %s to %s", from, to)
	}
	return nil
}
