package lesson

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLesson is wrapped by every error Validate returns.
var ErrInvalidLesson = errors.New("invalid lesson")

// ValidationError describes a single problem found in a lesson definition.
type ValidationError struct {
	CardID  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.CardID == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidLesson, e.Message)
	}
	return fmt.Sprintf("%s: card %q: %s", ErrInvalidLesson, e.CardID, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidLesson }

// Validate checks that a lesson can be delivered. A session must never be
// created from a lesson that fails validation.
func Validate(l *Lesson) error {
	if l == nil {
		return &ValidationError{Message: "lesson is missing"}
	}
	if strings.TrimSpace(l.ID) == "" {
		return &ValidationError{Message: "lesson id is empty"}
	}
	if len(l.Cards) == 0 {
		return &ValidationError{Message: "lesson has no cards"}
	}

	seen := make(map[string]bool, len(l.Cards))
	for i, c := range l.Cards {
		if strings.TrimSpace(c.ID) == "" {
			return &ValidationError{Message: fmt.Sprintf("card %d has an empty id", i)}
		}
		if seen[c.ID] {
			return &ValidationError{CardID: c.ID, Message: "duplicate card id"}
		}
		seen[c.ID] = true

		if err := validateCFU(c); err != nil {
			return err
		}
	}
	return nil
}

func validateCFU(c Card) error {
	cfu := c.CFU
	if !cfu.Kind.Valid() {
		return &ValidationError{CardID: c.ID, Message: fmt.Sprintf("unknown CFU kind %q", cfu.Kind)}
	}

	switch cfu.Kind {
	case CFUMultipleChoice:
		if len(cfu.Options) < 2 {
			return &ValidationError{CardID: c.ID, Message: "multiple-choice CFU needs at least 2 options"}
		}
		if cfu.CorrectIndex < 0 || cfu.CorrectIndex >= len(cfu.Options) {
			return &ValidationError{CardID: c.ID, Message: fmt.Sprintf("correct index %d out of range", cfu.CorrectIndex)}
		}
	case CFUNumeric:
		if cfu.Tolerance < 0 {
			return &ValidationError{CardID: c.ID, Message: "numeric tolerance must not be negative"}
		}
	case CFUText:
		if strings.TrimSpace(cfu.Rubric) == "" {
			return &ValidationError{CardID: c.ID, Message: "free-text CFU requires a rubric"}
		}
	}
	return nil
}
