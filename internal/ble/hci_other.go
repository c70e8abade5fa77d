//go:build !linux

package ble

import "fmt"

// NewHCIAdapter is only available on Linux.
func NewHCIAdapter(deviceID int) (Adapter, error) {
	return nil, fmt.Errorf("ble: hci transport: %w", ErrUnsupported)
}
