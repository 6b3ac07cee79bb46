package lesson

// CFUKind identifies the variant of a check-for-understanding block.
type CFUKind string

const (
	CFUMultipleChoice CFUKind = "mcq"
	CFUNumeric        CFUKind = "numeric"
	CFUText           CFUKind = "text"
)

// Valid reports whether k is a known CFU kind.
func (k CFUKind) Valid() bool {
	switch k {
	case CFUMultipleChoice, CFUNumeric, CFUText:
		return true
	}
	return false
}

// CFU is the single question or task embedded in a card. Which fields are
// meaningful depends on Kind:
//
//   - mcq:     Options and CorrectIndex (0-based)
//   - numeric: Expected and Tolerance
//   - text:    Rubric only
type CFU struct {
	ID           string   `json:"id" yaml:"id"`
	Kind         CFUKind  `json:"kind" yaml:"kind"`
	Prompt       string   `json:"prompt" yaml:"prompt"`
	Options      []string `json:"options,omitempty" yaml:"options,omitempty"`
	CorrectIndex int      `json:"correct_index,omitempty" yaml:"correct_index,omitempty"`
	Expected     float64  `json:"expected,omitempty" yaml:"expected,omitempty"`
	Tolerance    float64  `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
	Rubric       string   `json:"rubric,omitempty" yaml:"rubric,omitempty"`
}

// CorrectOption returns the text of the correct multiple-choice option, or
// "" for other kinds.
func (c CFU) CorrectOption() string {
	if c.Kind != CFUMultipleChoice || c.CorrectIndex < 0 || c.CorrectIndex >= len(c.Options) {
		return ""
	}
	return c.Options[c.CorrectIndex]
}

// Card is an immutable unit of instructional content.
type Card struct {
	ID               string   `json:"id" yaml:"id"`
	Title            string   `json:"title" yaml:"title"`
	Explanation      string   `json:"explanation" yaml:"explanation"`
	PlainExplanation string   `json:"plain_explanation,omitempty" yaml:"plain_explanation,omitempty"`
	Examples         []string `json:"examples,omitempty" yaml:"examples,omitempty"`
	OutcomeRefs      []string `json:"outcome_refs,omitempty" yaml:"outcome_refs,omitempty"`
	CFU              CFU      `json:"cfu" yaml:"cfu"`
}

// Lesson is the ordered list of cards a session walks through, plus the
// curriculum outcomes it targets.
type Lesson struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	OutcomeRefs []string `json:"outcome_refs,omitempty" yaml:"outcome_refs,omitempty"`
	Cards       []Card   `json:"cards" yaml:"cards"`
}

// OutcomesFor returns the outcome ids a graded attempt on card should update:
// the lesson's outcomes followed by any extra outcomes the card references,
// without duplicates.
func (l *Lesson) OutcomesFor(card Card) []string {
	seen := make(map[string]bool, len(l.OutcomeRefs)+len(card.OutcomeRefs))
	var out []string
	for _, refs := range [][]string{l.OutcomeRefs, card.OutcomeRefs} {
		for _, id := range refs {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
