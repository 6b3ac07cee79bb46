package lesson

import "fmt"

// Sequencer walks the cards of a lesson in order. It holds no state of its
// own beyond the position it was built with; the caller persists the index
// and completed set.
type Sequencer struct {
	lesson *Lesson
	index  int
}

// NewSequencer returns a sequencer positioned at index.
func NewSequencer(l *Lesson, index int) *Sequencer {
	return &Sequencer{lesson: l, index: index}
}

// Total returns the number of cards in the lesson.
func (s *Sequencer) Total() int {
	return len(s.lesson.Cards)
}

// Index returns the current position.
func (s *Sequencer) Index() int {
	return s.index
}

// Exhausted reports whether every card has been delivered.
func (s *Sequencer) Exhausted() bool {
	return s.index >= s.Total()
}

// Current returns the card at the current position.
// Returns false once the lesson is exhausted.
func (s *Sequencer) Current() (Card, bool) {
	if s.index < 0 || s.Exhausted() {
		return Card{}, false
	}
	return s.lesson.Cards[s.index], true
}

// Progress renders the 1-based "i/n" position shown to learners.
func (s *Sequencer) Progress() string {
	pos := s.index + 1
	if pos > s.Total() {
		pos = s.Total()
	}
	return fmt.Sprintf("%d/%d", pos, s.Total())
}

// Advance marks the current card completed and moves to the next one.
// It returns the new index and the updated completed list; a card id is
// never appended twice.
func (s *Sequencer) Advance(completed []string) (int, []string) {
	if card, ok := s.Current(); ok && !contains(completed, card.ID) {
		completed = append(completed, card.ID)
	}
	if !s.Exhausted() {
		s.index++
	}
	return s.index, completed
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
