package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"symcheck/internal/conversation"
	apperrors "symcheck/internal/errors"
	"symcheck/internal/report"
)

const (
	otherAnswer = "Other (type my own answer)"
	chatHelp    = "Commands: /new starts over, /report <file.pdf> saves the assessment, /quit exits."
)

type chatCommand struct {
	name string
	arg  string
}

// parseChatCommand recognises slash commands; ok is false for symptom text.
func parseChatCommand(input string) (chatCommand, bool) {
	if !strings.HasPrefix(input, "/") {
		return chatCommand{}, false
	}
	name, arg, _ := strings.Cut(strings.TrimPrefix(input, "/"), " ")
	return chatCommand{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, true
}

func newChatCommand(flags *rootFlags) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive screening session in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := flags.load()
			if err != nil {
				return err
			}
			if flags.logLevel == "" {
				cfg.Observability.Logging.Level = "warn"
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			container, err := buildContainer(ctx, cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = container.Cleanup(shutdownCtx)
			}()

			if plain {
				color.NoColor = true
			}
			interactive := isTTY() && !plain
			md, err := newMarkdownRenderer(!interactive)
			if err != nil {
				return err
			}
			c := &chat{
				container:   container,
				out:         cmd.OutOrStdout(),
				md:          md,
				interactive: interactive,
			}
			return c.run(ctx)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "disable colours, menus and markdown styling")
	return cmd
}

type chat struct {
	container   *Container
	out         io.Writer
	md          *markdownRenderer
	interactive bool
	session     *conversation.Session
}

func (c *chat) run(ctx context.Context) error {
	homeDir, _ := os.UserHomeDir()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("you> "),
		HistoryFile:       filepath.Join(homeDir, ".symcheck-history"),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		UniqueEditLine:    true,
		Stdin:             readline.NewCancelableStdin(os.Stdin),
		Stdout:            os.Stdout,
		Stderr:            os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	c.startSession(ctx)
	for {
		input, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(input) == 0 {
				fmt.Fprintln(c.out, "\nGoodbye!")
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(c.out, "\nGoodbye!")
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if cmd, ok := parseChatCommand(input); ok {
			if quit := c.handleCommand(ctx, cmd); quit {
				return nil
			}
			continue
		}
		c.turn(ctx, input)
	}
}

func (c *chat) startSession(ctx context.Context) {
	if c.session != nil {
		_ = c.container.Sessions.Delete(ctx, c.session.ID())
	}
	c.session = c.container.Sessions.Create(ctx)
	fmt.Fprintf(c.out, "\n%s %s\n", bold("Symptom checker"), gray("session "+c.session.ID()))
	fmt.Fprintln(c.out, "Describe your symptoms. This is not a substitute for professional medical advice.")
	fmt.Fprintln(c.out, gray(chatHelp))
	fmt.Fprintln(c.out)
}

func (c *chat) handleCommand(ctx context.Context, cmd chatCommand) (quit bool) {
	switch cmd.name {
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Goodbye!")
		return true
	case "new", "reset":
		c.startSession(ctx)
	case "report":
		if err := c.saveReport(cmd.arg); err != nil {
			fmt.Fprintln(c.out, errorText(err.Error()))
		}
	case "help":
		fmt.Fprintln(c.out, chatHelp)
	default:
		fmt.Fprintln(c.out, yellow("Unknown command /"+cmd.name+". "+chatHelp))
	}
	return false
}

// turn sends input and keeps answering option menus until a free-text reply
// is needed.
func (c *chat) turn(ctx context.Context, input string) {
	for input != "" {
		resp, err := c.container.Engine.ProcessMessage(ctx, c.session, input)
		if err != nil {
			c.printError(err)
			return
		}
		renderResponse(c.out, resp, c.md)
		input = ""
		if c.interactive && resp.Type == conversation.ResponseFollowupQuestion && resp.HasOptions {
			input = selectOption(resp.FollowupDetails)
		}
	}
}

func (c *chat) printError(err error) {
	message := err.Error()
	if !errors.Is(err, conversation.ErrEmptyMessage) {
		message = apperrors.UserMessage(err)
	}
	fmt.Fprintln(c.out, errorText(message))
}

// selectOption shows a menu for a multiple-choice question. An empty return
// means the user wants to type the answer.
func selectOption(q *conversation.FollowupDetails) string {
	items := append(append([]string{}, q.Options...), otherAnswer)
	prompt := promptui.Select{
		Label: fmt.Sprintf("Question %d of %d", q.QuestionNum, q.TotalQuestions),
		Items: items,
		Size:  len(items),
	}
	_, choice, err := prompt.Run()
	if err != nil || choice == otherAnswer {
		return ""
	}
	return choice
}

func (c *chat) saveReport(path string) error {
	result := c.session.LastDiagnosis()
	if result == nil {
		return errors.New("the assessment is not complete yet")
	}
	if path == "" {
		path = fmt.Sprintf("symptom-report-%s.pdf", c.session.ID())
	}
	view := c.session.View()
	data, err := c.container.Reports.Render(report.Input{
		SessionID: view.SessionID,
		CreatedAt: time.Now(),
		Narrative: view.History.Narrative(),
		Result:    result,
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintln(c.out, green("✓ Saved "+path))
	return nil
}

// renderResponse prints one assistant reply.
func renderResponse(w io.Writer, resp *conversation.Response, md *markdownRenderer) {
	switch resp.Type {
	case conversation.ResponseEmergency:
		fmt.Fprintln(w, red(fmt.Sprintf("🚨 EMERGENCY (%s)", resp.Severity)))
		fmt.Fprintln(w, red(resp.Content))
	case conversation.ResponseRejection:
		fmt.Fprintln(w, yellow(resp.Content))
	case conversation.ResponseFollowupQuestion:
		q := resp.FollowupDetails
		fmt.Fprintf(w, "%s %s\n", bold(fmt.Sprintf("[%d/%d]", q.QuestionNum, q.TotalQuestions)), q.Question)
		for _, option := range q.Options {
			fmt.Fprintf(w, "  %s\n", option)
		}
	case conversation.ResponseDiagnosis:
		fmt.Fprint(w, md.Render(resp.Content))
		d := resp.DiagnosisDetails
		if !d.UsedRetrieval {
			fmt.Fprintln(w, gray("Not grounded in the reference index: "+d.FallbackReason))
		}
		for i, source := range d.Sources {
			fmt.Fprintf(w, "  %s %s %s\n", gray(fmt.Sprintf("[%d]", i+1)), source.Title, gray(source.URL))
		}
		fmt.Fprintln(w, gray("Type /report <file.pdf> to save this assessment."))
	default:
		fmt.Fprintln(w, gray(resp.Content))
	}
	fmt.Fprintln(w)
}
