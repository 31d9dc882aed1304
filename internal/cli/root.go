// Package cli implements the sitecraft command line, which drives the same
// form, history, preview and health components as the UI server.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ashureev/sitecraft/internal/alert"
	"github.com/ashureev/sitecraft/internal/apiclient"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// APIURLEnv is read when --api-url is not given.
const APIURLEnv = "API_URL"

// RootCmd returns the sitecraft root command with every subcommand attached.
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sitecraft",
		Short: "Generate websites with AI from the terminal",
		Long: `sitecraft talks to the website generation backend.

It can generate a website from a prompt, browse and export past projects,
and check whether the backend is reachable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("api-url", "", "Backend API base URL (default $API_URL or "+apiclient.DefaultBaseURL+")")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log backend requests to stderr")

	rootCmd.AddCommand(GenerateCmd())
	rootCmd.AddCommand(ProjectsCmd())
	rootCmd.AddCommand(HealthCmd())

	return rootCmd
}

// Execute runs the root command and prints a failure in red.
func Execute() int {
	if err := RootCmd().Execute(); err != nil {
		PrintError(os.Stderr, err)
		return 1
	}
	return 0
}

// PrintError writes the user-facing part of err.
func PrintError(w io.Writer, err error) {
	_, _ = color.New(color.FgRed).Fprintln(w, "Error: "+userMessage(err))
}

func userMessage(err error) string {
	if msg, ok := alert.MessageOf(err); ok {
		return msg
	}
	if msg := apiclient.Message(err); msg != "" {
		return msg
	}
	return err.Error()
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func newClient(cmd *cobra.Command, logger *slog.Logger) *apiclient.Client {
	apiURL, _ := cmd.Flags().GetString("api-url")
	if apiURL == "" {
		apiURL = os.Getenv(APIURLEnv)
	}
	return apiclient.New(apiURL, apiclient.WithLogger(logger))
}

// promptConfirm asks a yes/no question on the command's streams.
func promptConfirm(cmd *cobra.Command) func(string) bool {
	return func(question string) bool {
		fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", question)
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}
}

func success(w io.Writer, format string, args ...any) {
	_, _ = color.New(color.FgGreen).Fprintf(w, "✓ "+format+"\n", args...)
}
