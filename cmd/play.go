package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/lessonloop/internal/evaluator"
	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/session"
	"github.com/abhisek/lessonloop/internal/ui/render"
	"github.com/abhisek/lessonloop/internal/ui/theme"
	"github.com/abhisek/lessonloop/internal/workflow"
)

var playCmd = &cobra.Command{
	Use:   "play <lesson-file>",
	Short: "Work through a lesson interactively in the terminal",
	Long:  "Work through a lesson interactively. Type :skip to skip a card and :quit to cancel the session.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l, err := lesson.LoadFile(args[0])
		if err != nil {
			return err
		}
		student, _ := cmd.Flags().GetString("student")
		timed, _ := cmd.Flags().GetBool("timed")

		d, err := buildDeps(ctx)
		if err != nil {
			return err
		}
		defer d.Close()

		sc := cfg.Session
		sc.NoTimeout = !timed
		step, err := d.engine.Start(ctx, workflow.StartInput{StudentID: student, Lesson: *l, Config: &sc})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		in := bufio.NewScanner(cmd.InOrStdin())
		for step.Presentation != nil {
			p := step.Presentation
			lipgloss.Fprintln(out, render.Presentation(p))
			fmt.Fprint(out, theme.Title.Render("> "))

			if !in.Scan() {
				fmt.Fprintln(out)
				lipgloss.Fprintln(out, theme.Hint.Render("Paused. Continue with: lessonloop respond "+p.SessionID+" "+p.CorrelationID+" <answer>"))
				return in.Err()
			}
			answer := strings.TrimSpace(in.Text())

			switch answer {
			case ":quit":
				step, err = d.engine.Cancel(ctx, p.SessionID)
			case ":skip":
				step, err = d.engine.Deliver(ctx, p.SessionID, session.Response{CorrelationID: p.CorrelationID, Action: session.ActionSkip})
			default:
				step, err = d.engine.Deliver(ctx, p.SessionID, session.Response{CorrelationID: p.CorrelationID, Action: session.ActionSubmit, ResponseText: answer})
			}
			if err != nil && evaluator.IsRetryable(err) {
				// The response is already recorded; one resume retries the
				// evaluation without asking again.
				logger.Warn("evaluation failed, retrying", "error", err)
				step, err = d.engine.Resume(ctx, p.SessionID)
			}
			if err != nil {
				return err
			}
			printFeedback(out, step)
		}

		if step.Summary != nil {
			lipgloss.Fprintln(out, render.Summary(step.Summary))
		}
		return nil
	},
}

func printFeedback(w io.Writer, step *workflow.Step) {
	if step.Ignored {
		lipgloss.Fprintln(w, theme.Hint.Render("Response ignored: "+step.IgnoreReason))
	}
	if step.Feedback != nil {
		lipgloss.Fprintln(w, render.Feedback(step.Feedback)+"\n")
	}
}

func init() {
	playCmd.Flags().String("student", "local", "Student id")
	playCmd.Flags().Bool("timed", false, "Apply the configured response timeout")
}
