// chatify - терминальный клиент чата.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/chatify/internal/client"
	"github.com/chatify/internal/logger"
	"github.com/chatify/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var server, logFile, logLevel string
	flagSet := pflag.NewFlagSet("chatify", pflag.ContinueOnError)
	flagSet.StringVarP(&server, "server", "s", envOr("CHATIFY_SERVER", "http://localhost:8080"), "API server URL")
	flagSet.StringVar(&logFile, "log-file", "chatify.log", "write client logs to this file (the terminal is used by the UI)")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, error")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	logger.SetOutput(f)
	logger.SetPrefix("client")
	logger.SetLevel(logLevel)

	app := tui.New(client.NewAPI(server))
	defer app.Close()
	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
