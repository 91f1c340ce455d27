package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jotdown/jotdown/internal/app"
	"github.com/jotdown/jotdown/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the jotdown CLI. It handles
// initialization and command routing; main() stays a one-liner.
//
// version and help work before any initialization so they keep working
// when the config or the profile is broken.
func Execute() error {
	command := "list"
	args := []string{}
	if len(os.Args) > 1 {
		command = os.Args[1]
		args = os.Args[2:]
	}

	switch command {
	case "version", "--version", "-v":
		return printVersionInfo()
	case "help", "--help", "-h":
		printHelp()
		return nil
	}

	logger := initLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := context.Background()
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown", "error", closeErr)
		}
	}()

	switch command {
	case "list":
		return runList(a, os.Stdout)
	case "new":
		return runNew(a, args, os.Stdout)
	case "show":
		return runShow(a, args, os.Stdout)
	case "generate":
		return runGenerate(ctx, a, args, os.Stdout)
	case "ask":
		return runAsk(ctx, a, args, os.Stdout)
	case "weekly":
		return runWeekly(ctx, a, os.Stdout)
	case "watch":
		return runWatch(ctx, a, os.Stdout)
	default:
		printHelp()
		return fmt.Errorf("unknown command %q", command)
	}
}

// initLogger initializes the structured logger.
//
// Log level is controlled by the DEBUG environment variable:
//   - DEBUG set (any value): debug level logging
//   - DEBUG not set: info level logging
//
// Logs go to stderr; stdout is reserved for command output.
func initLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if os.Getenv("DEBUG") != "" {
		opts.Level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// printVersionInfo displays version information.
func printVersionInfo() error {
	fmt.Printf("jotdown v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
	return nil
}

// printHelp displays the help message.
func printHelp() {
	fmt.Println("jotdown - AI note sessions in your terminal")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  jotdown                    List note sessions (default)")
	fmt.Println("  jotdown list               List note sessions")
	fmt.Println("  jotdown new [title]        Create a session and make it active")
	fmt.Println("  jotdown show [id]          Print a session (active when no id)")
	fmt.Println("  jotdown generate [id]      Run AI generation on a session")
	fmt.Println("  jotdown ask <question>     Ask about the active note")
	fmt.Println("  jotdown weekly             Build this week's summary now")
	fmt.Println("  jotdown watch              Stay running for the weekly schedule")
	fmt.Println("  jotdown version            Show version information")
	fmt.Println("  jotdown help               Show this help")
	fmt.Println()
	fmt.Println("Session ids may be abbreviated to any unique prefix.")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Gemini API key; without it the app runs")
	fmt.Println("                     offline and generation commands fail")
	fmt.Println("  DEBUG              Optional: Enable debug logging")
	fmt.Println()
	fmt.Println("Configuration: ~/.jotdown/config.yaml")
}
