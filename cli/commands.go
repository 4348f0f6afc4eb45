package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nijaru/yt-chat/errors"
	"github.com/nijaru/yt-chat/session"
	"github.com/nijaru/yt-chat/utils"
	"github.com/nijaru/yt-chat/validation"
)

var userID string

var processCmd = &cobra.Command{
	Use:   "process <youtube-url-or-id>",
	Short: "Summarize a video and make it the user's active session",
	Example: `  yt-chat process https://youtu.be/dQw4w9WgXcQ --user alice
  yt-chat process dQw4w9WgXcQ`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the user's active video",
	Example: `  yt-chat ask "What is the pricing model?" --user alice`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the summary of the user's active video",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

var translateCmd = &cobra.Command{
	Use:     "translate <language>",
	Short:   "Translate the active summary into another language",
	Example: `  yt-chat translate Hindi --user alice`,
	Args:    cobra.ExactArgs(1),
	RunE:    runTranslate,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the user's active video",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete every expired session once",
	Args:  cobra.NoArgs,
	RunE:  runSweep,
}

func init() {
	for _, cmd := range []*cobra.Command{processCmd, askCmd, summaryCmd, translateCmd, clearCmd} {
		cmd.Flags().StringVarP(&userID, "user", "u", "cli", "user the session belongs to")
	}
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), cfg.Server.RequestTimeout)
}

func runProcess(cmd *cobra.Command, args []string) error {
	videoID, err := validation.ExtractVideoID(args[0])
	if err != nil {
		return userError(err)
	}

	ctx, cancel := commandContext()
	defer cancel()

	service, err := app.Service(ctx)
	if err != nil {
		return err
	}

	summary, err := service.ProcessVideo(ctx, userID, videoID)
	if err != nil {
		return userError(err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), summary)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	service, err := app.Service(ctx)
	if err != nil {
		return err
	}

	answer, err := service.AnswerQuestion(ctx, userID, strings.Join(args, " "))
	if err != nil {
		return userError(err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	record, err := app.store.Get(ctx, userID)
	if err != nil {
		if errors.IsNotFound(err) {
			err = errors.NoActiveSession("cli.runSummary", err, "No active session")
		}
		return userError(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Video: %s", record.VideoID)
	if record.Language != "" {
		fmt.Fprintf(out, " (%s)", record.Language)
	}
	fmt.Fprintf(out, "\nExpires: %s\n\n%s\n", record.ExpiresAt.Local().Format(time.RFC1123), record.Summary)
	return nil
}

func runTranslate(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	service, err := app.Service(ctx)
	if err != nil {
		return err
	}

	translated, err := service.Translate(ctx, userID, args[0])
	if err != nil {
		return userError(err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), translated)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	if err := app.store.Clear(ctx, userID); err != nil {
		return userError(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Session cleared for %s\n", userID)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	removed, err := session.NewSweeper(app.store, cfg.Session.SweepInterval).SweepOnce(ctx)
	if err != nil {
		return userError(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired session(s)\n", removed)
	return nil
}

// userError logs err and returns the message an end user should see.
func userError(err error) error {
	logrus.WithError(err).WithField("kind", errors.KindOf(err)).Debug("Command failed")
	return pkgerrors.New(utils.UserMessage(err))
}
