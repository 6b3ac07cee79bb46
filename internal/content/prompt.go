package content

import (
	"fmt"
	"strings"

	"github.com/abhisek/lessonloop/internal/lesson"
)

const explainSystemPrompt = `You are a patient, encouraging tutor. A learner has used all their attempts on a question and now needs to see how to reach the correct answer.`

func buildExplainUserMessage(in Input) string {
	var b strings.Builder
	card := in.Card

	b.WriteString(fmt.Sprintf("Card: %s\n", card.Title))
	b.WriteString(fmt.Sprintf("Explanation shown: %s\n", card.Explanation))
	b.WriteString(fmt.Sprintf("Question: %s\n", card.CFU.Prompt))

	switch card.CFU.Kind {
	case lesson.CFUMultipleChoice:
		for i, opt := range card.CFU.Options {
			b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, opt))
		}
		b.WriteString(fmt.Sprintf("Correct answer: %s\n", card.CFU.CorrectOption()))
	case lesson.CFUNumeric:
		b.WriteString(fmt.Sprintf("Correct answer: %g\n", card.CFU.Expected))
	case lesson.CFUText:
		b.WriteString(fmt.Sprintf("What a good answer covers: %s\n", card.CFU.Rubric))
	}

	b.WriteString("\nLearner's attempts:\n")
	if len(in.Attempts) == 0 {
		b.WriteString("None\n")
	} else {
		for i, a := range in.Attempts {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, a))
		}
	}

	b.WriteString(`
Instructions:
1. Explain the correct approach in 2-4 sentences of plain language. Refer to the learner's attempts where it helps.
2. Give 2-5 short steps that lead to the answer.
3. State the correct answer.
4. Use plain ASCII text. No LaTeX.`)

	return b.String()
}
