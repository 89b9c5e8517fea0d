package segment

import (
	"errors"
	"fmt"
)

// ValidationState is the expert review status of a detected event.
type ValidationState string

const (
	NotValidated ValidationState = "NOT_VALIDATED"
	Validated    ValidationState = "VALIDATED"
	Invalidated  ValidationState = "INVALIDATED"
	ToReview     ValidationState = "TO_REVIEW"
)

func (s ValidationState) Valid() bool {
	switch s {
	case NotValidated, Validated, Invalidated, ToReview:
		return true
	}
	return false
}

type Role string

const (
	RoleTeacher Role = "TEACHER"
	RoleStudent Role = "STUDENT"
	RoleAdmin   Role = "ADMIN"
)

// IsReviewer reports whether the role may validate events.
func (r Role) IsReviewer() bool {
	return r == RoleTeacher || r == RoleAdmin
}

var (
	ErrInvalidTransition = errors.New("invalid validation transition")
	ErrNotFired          = errors.New("event did not fire")
	ErrEventNotFound     = errors.New("event not found")
)

var reviewerTransitions = map[ValidationState]ValidationState{
	NotValidated: Validated,
	Validated:    Invalidated,
	Invalidated:  Validated,
	ToReview:     Validated,
}

var requesterTransitions = map[ValidationState]ValidationState{
	Validated: ToReview,
}

func transitionsFor(role Role) map[ValidationState]ValidationState {
	if role.IsReviewer() {
		return reviewerTransitions
	}
	return requesterTransitions
}

// Next returns the state a single action by role moves from into.
func Next(from ValidationState, role Role) (ValidationState, error) {
	to, ok := transitionsFor(role)[from]
	if !ok {
		return "", fmt.Errorf("%w: %s cannot act on %s", ErrInvalidTransition, role, from)
	}
	return to, nil
}

// Transition checks that role may move an event from one state to another.
func Transition(from, to ValidationState, role Role) error {
	next, err := Next(from, role)
	if err != nil {
		return err
	}
	if next != to {
		return fmt.Errorf("%w: %s cannot move %s to %s", ErrInvalidTransition, role, from, to)
	}
	return nil
}

// ApplyValidation moves the event with the given id to state to on behalf of
// role, mutating events in place.
func ApplyValidation(events *Events, id int, to ValidationState, role Role) error {
	for i := range events.Intervals {
		e := &events.Intervals[i]
		if e.ID != id {
			continue
		}
		if !e.Annotations.FeedbackFired {
			return ErrNotFired
		}
		from := e.Annotations.ExpertValidation
		if from == "" {
			from = NotValidated
		}
		if err := Transition(from, to, role); err != nil {
			return err
		}
		e.Annotations.ExpertValidation = to
		return nil
	}
	return ErrEventNotFound
}

// VisibleEvents returns the events a role may see: events that fired, minus
// invalidated ones for non-reviewers.
func VisibleEvents(events []Event, role Role) []Event {
	visible := []Event{}
	for _, e := range events {
		if !e.Annotations.FeedbackFired {
			continue
		}
		if e.Annotations.ExpertValidation == Invalidated && !role.IsReviewer() {
			continue
		}
		visible = append(visible, e)
	}
	return visible
}
