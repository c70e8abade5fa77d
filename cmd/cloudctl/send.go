package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/cloudctl/internal/ble"
	"github.com/chaz8081/cloudctl/internal/ble/protocol"
	"github.com/chaz8081/cloudctl/internal/cloud"
)

var (
	sendID     string
	sendListen time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send --id <peripheral-id> TOKEN...",
	Short: "Connect to a cloud and write raw command tokens",
	Long: `Connect to one cloud, write each token in order, then disconnect.

Tokens use the wire syntax, for example:
  cloudctl send --id AA:BB:CC:DD:EE:FF LED_ON BRIGHTNESS_120 ANIMATION_WAVE

Every token is validated before connecting. With --listen the command waits
and prints the state the cloud reports.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendID, "id", "", "peripheral id (address) of the cloud")
	sendCmd.Flags().DurationVar(&sendListen, "listen", 0, "after sending, print state reports for this long")
	_ = sendCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	cmds := make([]protocol.Command, 0, len(args))
	for _, tok := range args {
		c, err := protocol.ParseCommand(tok)
		if err != nil {
			return err
		}
		cmds = append(cmds, c)
	}

	out := cmd.OutOrStdout()
	m, err := newManager(cmd, func(ev cloud.Event) {
		if ev.Kind == cloud.EventStateChanged && sendListen > 0 {
			fmt.Fprintf(out, "state: power=%v animation=%s cycle=%v\n",
				ev.State.Power, ev.State.Animation, ev.State.ColorCycle)
		}
	})
	if err != nil {
		return err
	}
	defer m.Shutdown()

	c, err := m.Connect(cmd.Context(), ble.Peripheral{ID: sendID})
	if err != nil {
		return err
	}

	var errs []error
	for _, sc := range cmds {
		if err := m.SendCommand(sc, c.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "sent %s\n", protocol.Encode(sc))
	}

	if sendListen > 0 {
		select {
		case <-time.After(sendListen):
		case <-cmd.Context().Done():
		}
	}

	if err := m.Disconnect(c.ID); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
