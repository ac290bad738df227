package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"visaintake/internal/app"
	"visaintake/internal/intake/session"
	"visaintake/internal/platform/config"
	"visaintake/internal/platform/logger"
	"visaintake/internal/platform/metrics"
	"visaintake/internal/tui"
)

// main opens one intake session and runs the terminal form over it. Logs go to
// a file because the form owns the terminal.
func main() {
	visaID := flag.String("visa", "", "edit a stored application instead of starting a new one")
	subID := flag.String("sub-traveler", "", "edit one sub-traveler of -visa")
	logPath := flag.String("log", "", "write logs to this file")
	flag.Parse()

	if err := run(*visaID, *subID, *logPath); err != nil {
		fmt.Fprintf(os.Stderr, "visaform: %v\n", err)
		os.Exit(1)
	}
}

func run(visaID, subID, logPath string) error {
	if subID != "" && visaID == "" {
		return fmt.Errorf("-sub-traveler needs -visa")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var logOut io.Writer = io.Discard
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	log := logger.New(cfg.Log, logOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	deps, err := app.New(ctx, cfg, log, metrics.New())
	if err != nil {
		return err
	}
	defer deps.Close()

	background := make(chan error, 1)
	go func() { background <- deps.Run(ctx) }()
	defer func() {
		cancel()
		<-background
	}()

	var sess *session.Session
	switch {
	case subID != "":
		sess, err = deps.Service.EditSubTraveler(ctx, visaID, subID)
	case visaID != "":
		sess, err = deps.Service.Edit(ctx, visaID)
	default:
		sess = deps.Service.Create(ctx)
	}
	if err != nil {
		return err
	}

	p := tea.NewProgram(tui.New(deps.Service, sess.ID), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run form: %w", err)
	}
	return nil
}
