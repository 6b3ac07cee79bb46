// Package render formats workflow output for the terminal.
package render

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/lessonloop/internal/mastery"
	"github.com/abhisek/lessonloop/internal/session"
	"github.com/abhisek/lessonloop/internal/ui/theme"
	"github.com/abhisek/lessonloop/internal/workflow"
)

// ProgressBar renders a horizontal bar of the given total width.
func ProgressBar(label string, percent float64, width int) string {
	var b strings.Builder
	if label != "" {
		b.WriteString(theme.Body.Render(label) + "  ")
	}

	barWidth := width - lipgloss.Width(b.String()) - 6
	if barWidth < 4 {
		barWidth = 4
	}
	percent = max(0, min(percent, 1))
	filled := int(float64(barWidth) * percent)

	b.WriteString(theme.ProgressFilled.Render(strings.Repeat(" ", filled)))
	b.WriteString(theme.ProgressEmpty.Render(strings.Repeat(" ", barWidth-filled)))
	b.WriteString(theme.Subtitle.Render(fmt.Sprintf("  %3d%%", int(percent*100))))
	return b.String()
}

// Presentation renders a card and its check-for-understanding prompt.
func Presentation(p *workflow.PresentationRequest) string {
	var b strings.Builder
	b.WriteString(theme.Subtitle.Render(p.LessonContext.LessonTitle+"  ·  card "+p.LessonContext.Progress) + "\n")
	b.WriteString(theme.Title.Render(p.Card.Title) + "\n")

	body := p.Card.Explanation
	if body == "" {
		body = p.Card.PlainExplanation
	}
	if body != "" {
		b.WriteString("\n" + theme.Body.Render(body) + "\n")
	}
	for _, ex := range p.Card.Examples {
		b.WriteString(theme.Hint.Render("e.g. "+ex) + "\n")
	}

	b.WriteString("\n" + theme.Body.Bold(true).Render(p.Card.Prompt) + "\n")
	for i, opt := range p.Card.Options {
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, opt))
	}

	hint := fmt.Sprintf("attempt %d, %d remaining", p.Attempt, p.AttemptsRemaining)
	if p.TimeoutSeconds > 0 {
		hint += fmt.Sprintf(", answer within %ds", p.TimeoutSeconds)
	}
	b.WriteString(theme.Hint.Render(hint))
	return theme.Panel.Render(b.String())
}

// Feedback renders the outcome of one marked response.
func Feedback(f *session.Feedback) string {
	var head string
	switch {
	case f.Skipped:
		head = theme.Skipped.Render("Skipped")
	case f.IsCorrect:
		head = theme.Correct.Render("Correct!")
	default:
		head = theme.Incorrect.Render("Not quite")
	}

	lines := []string{head}
	if f.Text != "" {
		lines = append(lines, theme.Body.Render(f.Text))
	}
	if f.Explanation != "" {
		lines = append(lines, "", theme.Subtitle.Render("Here is how it works:"), theme.Body.Render(f.Explanation))
	}
	return strings.Join(lines, "\n")
}

// Summary renders the completion summary.
func Summary(sum *session.CompletionSummary) string {
	rows := []string{
		theme.Title.Render("Session " + string(sum.EndReason)),
		row("Cards", fmt.Sprintf("%d / %d", sum.CardsCompleted, sum.TotalCards)),
		row("Accuracy", fmt.Sprintf("%.0f%%", sum.OverallAccuracy*100)),
		row("First try", fmt.Sprintf("%.0f%%", sum.FirstAttemptSuccessRate*100)),
		row("Avg tries", fmt.Sprintf("%.1f", sum.AverageAttempts)),
	}
	if sum.RetryRecommended {
		rows = append(rows, theme.Hint.Render("A second pass through this lesson is recommended."))
	}
	return theme.Panel.Render(strings.Join(rows, "\n"))
}

// Session renders a stored session for inspection.
func Session(s *session.Session) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render(s.Lesson.Title) + "\n")
	b.WriteString(row("Session", s.ID) + "\n")
	b.WriteString(row("Student", s.StudentID) + "\n")
	b.WriteString(row("Stage", string(s.Stage)) + "\n")
	if s.Done {
		reason := string(s.EndReason)
		if s.Error != "" {
			reason += ": " + s.Error
		}
		b.WriteString(row("Ended", reason) + "\n")
	}

	total := len(s.Lesson.Cards)
	var pct float64
	if total > 0 {
		pct = float64(len(s.CardsCompleted)) / float64(total)
	}
	b.WriteString(ProgressBar(fmt.Sprintf("%d/%d cards", len(s.CardsCompleted), total), pct, 50) + "\n")

	if s.Pending != nil {
		b.WriteString(row("Awaiting", fmt.Sprintf("%s attempt %d (%s)", s.Pending.CardID, s.Pending.Attempt, s.Pending.CorrelationID)) + "\n")
	}

	if len(s.Evidence) > 0 {
		b.WriteString("\n" + theme.Subtitle.Render("Evidence") + "\n")
		for _, e := range s.Evidence {
			mark := theme.Incorrect.Render("✗")
			if e.IsCorrect {
				mark = theme.Correct.Render("✓")
			}
			b.WriteString(fmt.Sprintf("  %s %-12s try %d  conf %.2f  %q\n", mark, e.CardID, e.Attempt, e.Confidence, e.Response))
		}
	}
	for _, id := range s.SkippedCards {
		b.WriteString("  " + theme.Skipped.Render("» "+id+" skipped") + "\n")
	}

	if outcomes := mastery.Summarize(s.MasteryUpdates); len(outcomes) > 0 {
		b.WriteString("\n" + theme.Subtitle.Render("Mastery") + "\n")
		for _, o := range outcomes {
			b.WriteString("  " + ProgressBar(fmt.Sprintf("%-14s", o.OutcomeID), o.Mean, 46) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func row(label, value string) string {
	return theme.Label.Render(label) + theme.Body.Render(value)
}
