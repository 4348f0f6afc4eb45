// Package cli wires configuration, storage and the assistant into the
// yt-chat command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nijaru/yt-chat/config"
	"github.com/nijaru/yt-chat/logger"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	verbose bool

	cfg       *config.Config
	app       *components
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "yt-chat",
	Short: "Summarize YouTube videos and answer questions about them",
	Long: `yt-chat fetches a YouTube transcript, summarizes it with an LLM and keeps
it as the user's active session, so follow-up questions are answered from
that video only.

Run "yt-chat serve" for the HTTP API, or use the one-shot commands to work
with a session from the terminal.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.Log.Level = "debug"
		}

		logCloser, err = logger.Setup(cfg.Log)
		if err != nil {
			return fmt.Errorf("setup logger: %w", err)
		}

		app, err = newComponents(context.Background(), cfg)
		if err != nil {
			return fmt.Errorf("open session storage: %w", err)
		}
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes one command and releases what PersistentPreRunE opened,
// whether or not the command succeeded.
func run(args []string) error {
	rootCmd.SetArgs(args)
	defer func() {
		if app != nil {
			if err := app.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close session storage")
			}
			app = nil
		}
		if logCloser != nil {
			logCloser.Close()
			logCloser = nil
		}
	}()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(sweepCmd)
}
