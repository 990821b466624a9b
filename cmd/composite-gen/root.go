package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironsheep/composite-gen/internal/config"
)

// lookupEnv is replaced in tests.
var lookupEnv = os.LookupEnv

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "composite-gen",
		Short: "Generate labelled object-detection images by compositing sprites onto backgrounds",
		Long: `composite-gen places cut-out object images onto background images, optionally
blurs and lens-distorts the result, and records the bounding box of every placed
object. Images are written to the output directory together with a
bounding_boxes.labels manifest and can be uploaded to an Edge Impulse project.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			env, _ := lookupEnv(config.EnvLogLevel)
			level, err := parseLogLevel(logLevel, env)
			if err != nil {
				return err
			}
			// stdout carries the run summary and, in serve mode, the protocol.
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "",
		fmt.Sprintf("debug, info, warn or error (default from %s, else info)", config.EnvLogLevel))

	root.AddCommand(newGenerateCmd(), newServeCmd(), newVersionCmd())
	return root
}

// parseLogLevel returns the level named by flag, or by env when flag is empty.
func parseLogLevel(flag, env string) (slog.Level, error) {
	s := flag
	if s == "" {
		s = env
	}
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "composite-gen %s\n", Version)
			fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
		},
	}
}
