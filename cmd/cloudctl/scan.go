package main

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/chaz8081/cloudctl/internal/ble"
	"github.com/chaz8081/cloudctl/internal/cloud"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for clouds for one scan window",
	Long: `Scan for nearby clouds and print them once the 15 second scan window
closes. A peripheral is listed if its name contains "ESP32" or it advertises
the cloud service.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	stopped := make(chan struct{}, 1)
	m, err := newManager(cmd, func(ev cloud.Event) {
		if ev.Kind == cloud.EventScanStopped {
			select {
			case stopped <- struct{}{}:
			default:
			}
		}
	})
	if err != nil {
		return err
	}
	defer m.Shutdown()

	if err := m.StartScan(cmd.Context()); err != nil {
		if cloud.IsRetryable(err) {
			return fmt.Errorf("%w; turn Bluetooth on and run scan again", err)
		}
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Scanning for %s...\n", cloud.ScanWindow)

	select {
	case <-stopped:
	case <-cmd.Context().Done():
		m.StopScan()
	}

	found := m.Discovered()
	if len(found) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No clouds found.")
		return nil
	}

	fmt.Fprint(cmd.OutOrStdout(), renderPeripheralTable(found))
	return nil
}

// renderPeripheralTable aligns the columns first and styles the header
// afterwards; tabwriter would count escape codes as width.
func renderPeripheralTable(ps []ble.Peripheral) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tRSSI")
	for _, p := range ps {
		name := p.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", p.ID, name, p.RSSI)
	}
	_ = w.Flush()

	header, rows, _ := strings.Cut(buf.String(), "\n")
	return lipgloss.NewStyle().Bold(true).Render(header) + "\n" + rows
}
