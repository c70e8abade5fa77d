package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chaz8081/cloudctl/internal/cloud"
	"github.com/chaz8081/cloudctl/internal/logging"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for controlling clouds",
	Long: `Control clouds through an interactive terminal UI.

Scan with s, pick a cloud with the arrow keys and connect with enter. Several
clouds can be connected; tab moves between them. Every key acts on the active
cloud only. Press ? for the full key list.

While the UI runs, logs go to log.file from the config.`,
	Args: cobra.NoArgs,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

func runControl(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("control needs an interactive terminal; use scan or send instead")
	}

	logFile, err := logging.OpenFile(cfg.Log.File)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logging.Setup(cfg.Log, logFile)

	// Events can arrive before the program exists; they are dropped until
	// then and the model reads a fresh snapshot on start.
	var p *tea.Program
	ready := make(chan struct{})
	onEvent := func(ev cloud.Event) {
		select {
		case <-ready:
			p.Send(eventMsg(ev))
		default:
		}
	}

	mgr, err := newManager(cmd, onEvent)
	if err != nil {
		return err
	}

	model := initialControlModel(cmd.Context(), mgr)
	p = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	close(ready)

	_, runErr := p.Run()
	if err := mgr.Shutdown(); err != nil {
		slog.Warn("[CLOUD] shutdown", "error", err)
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}
