package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/session"
	"github.com/abhisek/lessonloop/internal/ui/render"
	"github.com/abhisek/lessonloop/internal/ui/theme"
	"github.com/abhisek/lessonloop/internal/workflow"
)

var startCmd = &cobra.Command{
	Use:   "start <lesson-file>",
	Short: "Start a session from a lesson YAML or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := lesson.LoadFile(args[0])
		if err != nil {
			return err
		}
		student, _ := cmd.Flags().GetString("student")
		id, _ := cmd.Flags().GetString("session-id")
		maxAttempts, _ := cmd.Flags().GetInt("max-attempts")

		return withEngine(cmd, func(e *workflow.Engine) (*workflow.Step, error) {
			return e.Start(cmd.Context(), workflow.StartInput{
				SessionID:   id,
				StudentID:   student,
				Lesson:      *l,
				MaxAttempts: maxAttempts,
			})
		})
	},
}

var respondCmd = &cobra.Command{
	Use:   "respond <session-id> <correlation-id> [answer]",
	Short: "Deliver a learner response to a waiting session",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp := session.Response{CorrelationID: args[1], Action: session.ActionSubmit}
		if len(args) == 3 {
			resp.ResponseText = args[2]
		}
		if skip, _ := cmd.Flags().GetBool("skip"); skip {
			resp.Action = session.ActionSkip
		}
		return withEngine(cmd, func(e *workflow.Engine) (*workflow.Step, error) {
			return e.Deliver(cmd.Context(), args[0], resp)
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Continue a session whose response has already arrived",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(e *workflow.Engine) (*workflow.Step, error) {
			return e.Resume(cmd.Context(), args[0])
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <session-id>",
	Short: "Cancel a running session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(e *workflow.Engine) (*workflow.Step, error) {
			return e.Cancel(cmd.Context(), args[0])
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session's progress, evidence and mastery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		step, err := d.engine.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), step)
		}
		_, err = lipgloss.Fprintln(cmd.OutOrStdout(), render.Session(step.Session))
		return err
	},
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Expire sessions whose pending response timed out",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		n, err := d.engine.ExpireStale(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Expired %d session(s).\n", n)
		return nil
	},
}

// withEngine runs op against a freshly built engine and prints the step.
func withEngine(cmd *cobra.Command, op func(*workflow.Engine) (*workflow.Step, error)) error {
	d, err := buildDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	step, err := op(d.engine)
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), step)
	}
	return printStep(cmd.OutOrStdout(), step)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStep(w io.Writer, step *workflow.Step) error {
	var parts []string
	if step.Ignored {
		parts = append(parts, theme.Hint.Render("Response ignored: "+step.IgnoreReason))
	}
	if step.Feedback != nil {
		parts = append(parts, render.Feedback(step.Feedback))
	}
	if step.Presentation != nil {
		p := step.Presentation
		parts = append(parts, render.Presentation(p),
			theme.Hint.Render(fmt.Sprintf("respond with: lessonloop respond %s %s <answer>", p.SessionID, p.CorrelationID)))
	}
	if step.Summary != nil {
		parts = append(parts, render.Summary(step.Summary))
	}
	if len(parts) == 0 {
		parts = append(parts, render.Session(step.Session))
	}
	_, err := lipgloss.Fprintln(w, strings.Join(parts, "\n\n"))
	return err
}

func init() {
	startCmd.Flags().String("student", "local", "Student id")
	startCmd.Flags().String("session-id", "", "Session id (generated when empty)")
	startCmd.Flags().Int("max-attempts", 0, "Attempts per card (0 uses the configured default)")
	respondCmd.Flags().Bool("skip", false, "Skip the card instead of answering")

	for _, c := range []*cobra.Command{startCmd, respondCmd, resumeCmd, cancelCmd, showCmd} {
		c.Flags().Bool("json", false, "Print the raw step as JSON")
	}
}
